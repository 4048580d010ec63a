package goal

// SingleSettings returns the fixed generator settings for goals that always
// play the same settings, or nil for goals with drafted, per-event, or
// random settings.
func (g Goal) SingleSettings() map[string]any {
	switch g {
	case CopaDoBrasil:
		return map[string]any{
			"user_message":              "Copa do Brasil",
			"bridge":                    "medallions",
			"bridge_medallions":         6,
			"shuffle_ganon_bosskey":     "remove",
			"open_forest":               "open",
			"open_kakariko":             "open",
			"open_door_of_time":         true,
			"gerudo_fortress":           "fast",
			"shuffle_child_trade":       "skip_child_zelda",
			"starting_age":              "adult",
			"correct_chest_appearances": "both",
			"hint_dist":                 "tournament",
			"start_with_consumables":    true,
			"no_epona_race":             true,
			"fast_bunny_hood":           true,
		}
	case MixedPoolsS3:
		return map[string]any{
			"user_message":                "3rd Mixed Pools Tournament",
			"shuffle_interior_entrances":  "all",
			"shuffle_grotto_entrances":    true,
			"shuffle_dungeon_entrances":   "all",
			"shuffle_overworld_entrances": true,
			"mix_entrance_pools":          []string{"Interior", "GrottoGrave", "Dungeon", "Overworld"},
			"bridge":                      "medallions",
			"bridge_medallions":           6,
			"shuffle_ganon_bosskey":       "remove",
			"open_forest":                 "open",
			"open_kakariko":               "open",
			"open_door_of_time":           true,
			"spawn_positions":             true,
			"starting_age":                "random",
			"correct_chest_appearances":   "both",
			"hint_dist":                   "mixed_pools",
			"free_scarecrow":              true,
		}
	case StandardWeekly:
		return map[string]any{
			"user_message":              "Standard Weekly",
			"bridge":                    "medallions",
			"bridge_medallions":         6,
			"shuffle_ganon_bosskey":     "remove",
			"open_forest":               "closed_deku",
			"open_kakariko":             "open",
			"open_door_of_time":         true,
			"gerudo_fortress":           "fast",
			"shuffle_child_trade":       "skip_child_zelda",
			"starting_age":              "random",
			"correct_chest_appearances": "both",
			"hint_dist":                 "tournament",
			"start_with_consumables":    true,
			"no_epona_race":             true,
			"free_scarecrow":            true,
		}
	case WeTryToBeBetter:
		return map[string]any{
			"user_message":              "WeTryToBeBetter",
			"bridge":                    "medallions",
			"bridge_medallions":         6,
			"shuffle_ganon_bosskey":     "remove",
			"open_forest":               "open",
			"open_kakariko":             "open",
			"open_door_of_time":         true,
			"shuffle_child_trade":       "skip_child_zelda",
			"starting_age":              "adult",
			"correct_chest_appearances": "both",
			"hint_dist":                 "tournament",
			"start_with_consumables":    true,
		}
	}
	return nil
}
