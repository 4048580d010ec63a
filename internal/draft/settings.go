package draft

import "strings"

// Kind selects one tournament's draft rules.
type Kind int

const (
	// MultiworldS3 is the multiworld tournament draft: two skippable bans
	// then four picks in A-B-B-A order over a shared setting pool, with
	// the final pick skippable.
	MultiworldS3 Kind = iota
	// TournamentS7 is the main tournament draft: two skippable bans, two
	// major-setting picks, then two minor-setting picks.
	TournamentS7
)

func (k Kind) String() string {
	if k == TournamentS7 {
		return "s7"
	}
	return "mw3"
}

// Choice is one selectable value of a draftable setting.
type Choice struct {
	Name    string
	Display string
}

// Setting is one row of a draft kind's setting table.
type Setting struct {
	Name           string
	Display        string
	Default        string
	DefaultDisplay string
	Other          []Choice
	Description    string
	Major          bool
}

func (s Setting) choice(value string) (Choice, bool) {
	if value == s.Default {
		return Choice{Name: s.Default, Display: s.DefaultDisplay}, true
	}
	for _, c := range s.Other {
		if c.Name == value {
			return c, true
		}
	}
	return Choice{}, false
}

func (s Setting) values() []string {
	out := []string{s.Default}
	for _, c := range s.Other {
		out = append(out, c.Name)
	}
	return out
}

func (s Setting) valueNames() string {
	return strings.Join(s.values(), " or ")
}

var multiworldS3Settings = []Setting{
	{Name: "wincon", Display: "win conditions", Default: "meds", DefaultDisplay: "default wincons", Other: []Choice{{"scrubs", "Scrubs wincons"}, {"th", "Triforce Hunt"}}, Description: "wincon: meds (default: 6 Medallion Bridge + Keysy BK), scrubs (3 Stone Bridge + LACS BK), or th (Triforce Hunt 25/30)"},
	{Name: "dungeons", Display: "dungeons", Default: "tournament", DefaultDisplay: "tournament dungeons", Other: []Choice{{"skulls", "dungeon tokens"}, {"keyrings", "keyrings"}}, Description: "dungeons: tournament (default: keys shuffled in own dungeon), skulls (vanilla keys, dungeon tokens), or keyrings (small keyrings anywhere, vanilla boss keys)"},
	{Name: "er", Display: "entrance rando", Default: "off", DefaultDisplay: "no ER", Other: []Choice{{"dungeon", "dungeon ER"}}, Description: "er: off (default) or dungeon"},
	{Name: "trials", Display: "trials", Default: "0", DefaultDisplay: "0 trials", Other: []Choice{{"2", "2 trials"}}, Description: "trials: 0 (default) or 2"},
	{Name: "shops", Display: "shops", Default: "4", DefaultDisplay: "shops 4", Other: []Choice{{"off", "no shops"}}, Description: "shops: 4 (default) or off"},
	{Name: "scrubs", Display: "scrubs", Default: "affordable", DefaultDisplay: "affordable scrubs", Other: []Choice{{"off", "no scrubs"}}, Description: "scrubs: affordable (default) or off"},
	{Name: "fountain", Display: "fountain", Default: "closed", DefaultDisplay: "closed fountain", Other: []Choice{{"open", "open fountain"}}, Description: "fountain: closed (default) or open"},
	{Name: "spawn", Display: "spawns", Default: "tot", DefaultDisplay: "ToT spawns", Other: []Choice{{"random", "random spawns & starting age"}}, Description: "spawn: tot (default: adult start, vanilla spawns) or random (random spawns and starting age)"},
}

var tournamentS7Settings = []Setting{
	{Name: "bridge", Display: "rainbow bridge", Default: "meds", DefaultDisplay: "6 medallion bridge", Other: []Choice{{"open", "open bridge"}, {"dungeons", "7 dungeon reward bridge"}}, Description: "bridge: meds (default: 6 medallions), open, or dungeons (7 rewards)", Major: true},
	{Name: "deku", Display: "Kokiri Forest", Default: "closed", DefaultDisplay: "closed Deku", Other: []Choice{{"open", "open forest"}}, Description: "deku: closed (default) or open", Major: true},
	{Name: "interiors", Display: "indoor ER", Default: "off", DefaultDisplay: "no interior ER", Other: []Choice{{"on", "interior ER"}}, Description: "interiors: off (default) or on", Major: true},
	{Name: "dungeons", Display: "dungeon ER", Default: "off", DefaultDisplay: "no dungeon ER", Other: []Choice{{"on", "dungeon ER"}}, Description: "dungeons: off (default) or on", Major: true},
	{Name: "fountain", Display: "fountain", Default: "closed", DefaultDisplay: "closed fountain", Other: []Choice{{"open", "open fountain"}}, Description: "fountain: closed (default) or open"},
	{Name: "trials", Display: "trials", Default: "0", DefaultDisplay: "0 trials", Other: []Choice{{"3", "3 trials"}}, Description: "trials: 0 (default) or 3"},
	{Name: "camc", Display: "chest appearance", Default: "on", DefaultDisplay: "chest appearance matches contents", Other: []Choice{{"off", "vanilla chests"}}, Description: "camc: on (default) or off"},
	{Name: "frogs", Display: "frog rupees", Default: "off", DefaultDisplay: "vanilla frog rupees", Other: []Choice{{"shuffled", "shuffled frog rupees"}}, Description: "frogs: off (default) or shuffled"},
}

// Settings returns the kind's full setting table.
func (k Kind) Settings() []Setting {
	if k == TournamentS7 {
		return tournamentS7Settings
	}
	return multiworldS3Settings
}

func pick(picks map[string]string, name, def string) string {
	if v, ok := picks[name]; ok {
		return v
	}
	return def
}

// Resolve turns the drafted picks into the final generator settings.
func (k Kind) Resolve(picks map[string]string) map[string]any {
	if k == TournamentS7 {
		return resolveTournamentS7(picks)
	}
	return resolveMultiworldS3(picks)
}

func resolveMultiworldS3(picks map[string]string) map[string]any {
	wincon := pick(picks, "wincon", "meds")
	dungeons := pick(picks, "dungeons", "tournament")
	er := pick(picks, "er", "off")
	trials := pick(picks, "trials", "0")
	shops := pick(picks, "shops", "4")
	scrubs := pick(picks, "scrubs", "affordable")
	fountain := pick(picks, "fountain", "closed")
	spawn := pick(picks, "spawn", "tot")

	settings := map[string]any{
		"user_message":              "3rd Multiworld Tournament",
		"world_count":               3,
		"open_forest":               "open",
		"open_kakariko":             "open",
		"open_door_of_time":         true,
		"zora_fountain":             fountain,
		"gerudo_fortress":           "fast",
		"bridge_medallions":         6,
		"bridge_stones":             3,
		"bridge_rewards":            4,
		"triforce_hunt":             wincon == "th",
		"triforce_count_per_world":  30,
		"triforce_goal_per_world":   25,
		"shuffle_child_trade":       "skip_child_zelda",
		"no_escape_sequence":        true,
		"no_guard_stealth":          true,
		"no_epona_race":             true,
		"skip_some_minigame_phases": true,
		"free_scarecrow":            true,
		"fast_bunny_hood":           true,
		"start_with_rupees":         true,
		"start_with_consumables":    true,
		"big_poe_count":             1,
		"spawn_positions":           spawn == "random",
		"shopsanity":                shops,
		"shuffle_mapcompass":        "startwith",
		"enhance_map_compass":       true,
		"disabled_locations": []string{
			"Deku Theater Mask of Truth",
			"Kak 40 Gold Skulltula Reward",
			"Kak 50 Gold Skulltula Reward",
		},
		"allowed_tricks": []string{
			"logic_fewer_tunic_requirements",
			"logic_grottos_without_agony",
			"logic_child_deadhand",
			"logic_man_on_roof",
			"logic_dc_jump",
			"logic_rusted_switches",
			"logic_windmill_poh",
			"logic_crater_bean_poh_with_hovers",
			"logic_forest_vines",
			"logic_lens_botw",
			"logic_lens_castle",
			"logic_lens_gtg",
			"logic_lens_shadow",
			"logic_lens_shadow_platform",
			"logic_lens_bongo",
			"logic_lens_spirit",
			"logic_dc_scarecrow_gs",
		},
		"adult_trade_start":         []string{"Claim Check"},
		"starting_items":            []string{"ocarina", "farores_wind", "lens"},
		"correct_chest_appearances": "both",
		"hint_dist":                 "mw3",
		"ice_trap_appearance":       "junk_only",
		"junk_ice_traps":            "off",
	}
	switch wincon {
	case "meds":
		settings["bridge"] = "medallions"
		settings["shuffle_ganon_bosskey"] = "remove"
	case "scrubs":
		settings["bridge"] = "stones"
		settings["shuffle_ganon_bosskey"] = "on_lacs"
	case "th":
		settings["bridge"] = "dungeons"
		settings["shuffle_ganon_bosskey"] = "triforce"
	}
	switch trials {
	case "2":
		settings["trials"] = 2
	default:
		settings["trials"] = 0
	}
	switch er {
	case "dungeon":
		settings["shuffle_dungeon_entrances"] = "simple"
	default:
		settings["shuffle_dungeon_entrances"] = "off"
	}
	switch scrubs {
	case "affordable":
		settings["shuffle_scrubs"] = "low"
	default:
		settings["shuffle_scrubs"] = "off"
	}
	switch dungeons {
	case "tournament":
		settings["tokensanity"] = "off"
		settings["shuffle_smallkeys"] = "dungeon"
		settings["key_rings_choice"] = "off"
		settings["shuffle_bosskeys"] = "dungeon"
	case "skulls":
		settings["tokensanity"] = "dungeons"
		settings["shuffle_smallkeys"] = "vanilla"
		settings["key_rings_choice"] = "off"
		settings["shuffle_bosskeys"] = "vanilla"
	case "keyrings":
		settings["tokensanity"] = "off"
		settings["shuffle_smallkeys"] = "keysanity"
		settings["key_rings_choice"] = "all"
		settings["shuffle_bosskeys"] = "vanilla"
	}
	switch spawn {
	case "random":
		settings["starting_age"] = "random"
	default:
		settings["starting_age"] = "adult"
	}
	return settings
}

func resolveTournamentS7(picks map[string]string) map[string]any {
	settings := map[string]any{
		"user_message":               "S7 Tournament Race",
		"world_count":                1,
		"bridge":                     "medallions",
		"bridge_medallions":          6,
		"shuffle_ganon_bosskey":      "remove",
		"open_forest":                "closed_deku",
		"open_kakariko":              "open",
		"open_door_of_time":          true,
		"zora_fountain":              "closed",
		"gerudo_fortress":            "fast",
		"trials":                     0,
		"shuffle_interior_entrances": "off",
		"shuffle_dungeon_entrances":  "off",
		"shuffle_frog_song_rupees":   false,
		"correct_chest_appearances":  "both",
		"shuffle_child_trade":        "skip_child_zelda",
		"no_escape_sequence":         true,
		"no_guard_stealth":           true,
		"no_epona_race":              true,
		"skip_some_minigame_phases":  true,
		"free_scarecrow":             true,
		"fast_bunny_hood":            true,
		"start_with_consumables":     true,
		"big_poe_count":              1,
		"hint_dist":                  "tournament",
		"starting_age":               "random",
	}
	for _, setting := range tournamentS7Settings {
		value := pick(picks, setting.Name, setting.Default)
		if value == "default" {
			value = setting.Default
		}
		switch setting.Name {
		case "bridge":
			switch value {
			case "open":
				settings["bridge"] = "open"
				settings["shuffle_ganon_bosskey"] = "on_lacs"
			case "dungeons":
				settings["bridge"] = "dungeons"
				settings["bridge_rewards"] = 7
			}
		case "deku":
			if value == "open" {
				settings["open_forest"] = "open"
			}
		case "interiors":
			if value == "on" {
				settings["shuffle_interior_entrances"] = "simple"
			}
		case "dungeons":
			if value == "on" {
				settings["shuffle_dungeon_entrances"] = "simple"
			}
		case "fountain":
			settings["zora_fountain"] = value
		case "trials":
			if value == "3" {
				settings["trials"] = 3
			}
		case "camc":
			if value == "off" {
				settings["correct_chest_appearances"] = "off"
			}
		case "frogs":
			if value == "shuffled" {
				settings["shuffle_frog_song_rupees"] = true
			}
		}
	}
	return settings
}
