package domain

type ActivityType string

const (
	ActivityExam       ActivityType = "exam"
	ActivitySeminar    ActivityType = "seminar"
	ActivitySubmission ActivityType = "submission"
	ActivityAssignment ActivityType = "assignment"
	ActivityGeneric    ActivityType = "activity"
)

func (a ActivityType) Label() string {
	switch a {
	case ActivityExam:
		return "📝 Prova/Avaliação"
	case ActivitySeminar:
		return "🎤 Seminário"
	case ActivitySubmission:
		return "📤 Entrega"
	case ActivityAssignment:
		return "📋 Trabalho"
	default:
		return "📌 Atividade"
	}
}
