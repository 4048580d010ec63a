package room

import "github.com/sariahouse/racebot/internal/lang"

type textKey int

const (
	textBreakWarning textKey = iota
	textBreakStart
	textBreakEnd
	textFpaInvoked
	textFpaEnabled
	textFpaDisabled
	textRaceLocked
	textRaceUnlocked
)

// Most of the bot speaks English; rooms for non-English tournaments get
// translated versions of the recurring announcements.
var texts = map[lang.Language]map[textKey]string{
	lang.English: {
		textBreakWarning: "@entrants Reminder: Next break in 5 minutes.",
		textBreakStart:   "@entrants Break time! Please pause for the agreed duration.",
		textBreakEnd:     "@entrants Break ended. You may resume playing.",
		textFpaInvoked:   "@everyone FPA has been invoked by %s. The race must be paused until a resolution is reached.",
		textFpaEnabled:   "Fair play agreement is now active. Entrants may use the !fpa command during the race to notify of a crash.",
		textFpaDisabled:  "Fair play agreement is now deactivated.",
		textRaceLocked:   "Lock initiated. I will now only roll seeds for race monitors.",
		textRaceUnlocked: "Lock released. Anyone may now roll a seed.",
	},
	lang.French: {
		textBreakWarning: "@entrants Rappel : prochaine pause dans 5 minutes.",
		textBreakStart:   "@entrants C'est l'heure de la pause ! Merci de vous mettre en pause pour la durée convenue.",
		textBreakEnd:     "@entrants La pause est terminée. Vous pouvez reprendre la course.",
		textFpaInvoked:   "@everyone Le FPA a été invoqué par %s. La course doit être mise en pause jusqu'à une résolution.",
		textFpaEnabled:   "Le fair play agreement est maintenant actif. Les participants peuvent utiliser la commande !fpa pendant la course pour signaler un crash.",
		textFpaDisabled:  "Le fair play agreement est maintenant désactivé.",
		textRaceLocked:   "Verrouillage activé. Je ne roll plus de seed que pour les race monitors.",
		textRaceUnlocked: "Verrouillage désactivé. Tout le monde peut à nouveau roll une seed.",
	},
	lang.Portuguese: {
		textBreakWarning: "@entrants Lembrete: próxima pausa em 5 minutos.",
		textBreakStart:   "@entrants Hora da pausa! Por favor, pausem pela duração combinada.",
		textBreakEnd:     "@entrants Pausa encerrada. Podem voltar a jogar.",
		textFpaInvoked:   "@everyone O FPA foi invocado por %s. A corrida deve ser pausada até uma resolução.",
		textFpaEnabled:   "O fair play agreement está ativo. Os participantes podem usar o comando !fpa durante a corrida para avisar sobre um crash.",
		textFpaDisabled:  "O fair play agreement foi desativado.",
		textRaceLocked:   "Trava ativada. Agora só vou gerar seeds para os race monitors.",
		textRaceUnlocked: "Trava desativada. Qualquer um pode gerar uma seed.",
	},
	lang.Spanish: {
		textBreakWarning: "@entrants Recordatorio: próxima pausa en 5 minutos.",
		textBreakStart:   "@entrants ¡Hora de la pausa! Por favor pausen por la duración acordada.",
		textBreakEnd:     "@entrants La pausa terminó. Pueden seguir jugando.",
		textFpaInvoked:   "@everyone El FPA fue invocado por %s. La carrera debe pausarse hasta llegar a una resolución.",
		textFpaEnabled:   "El fair play agreement está activo. Los participantes pueden usar el comando !fpa durante la carrera para avisar de un crash.",
		textFpaDisabled:  "El fair play agreement fue desactivado.",
		textRaceLocked:   "Bloqueo activado. Solo generaré seeds para los race monitors.",
		textRaceUnlocked: "Bloqueo desactivado. Cualquiera puede generar una seed.",
	},
}

func (h *Handler) text(key textKey) string {
	if m, ok := texts[h.language]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	return texts[lang.English][key]
}
