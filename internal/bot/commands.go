package bot

import (
	"context"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tazhate/deadlinebot/internal/domain"
)

const (
	defaultUpcomingDays = 7
	maxUpcomingDays     = 90
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.cmdStart(chatID)
	case "help":
		b.cmdHelp(chatID)
	case "upcoming":
		b.cmdUpcoming(ctx, chatID, args)
	case "today":
		b.cmdToday(ctx, chatID)
	case "subjects":
		b.cmdSubjects(ctx, chatID)
	case "status":
		b.cmdStatus(ctx, chatID)
	case "reload":
		b.cmdReload(ctx, msg)
	default:
		b.reply(chatID, "Comando desconhecido. /help para ver os comandos")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.SendMessage(chatID, text); err != nil {
		log.Printf("Error sending reply to %d: %v", chatID, err)
	}
}

func (b *Bot) cmdStart(chatID int64) {
	b.reply(chatID, "👋 Olá! Eu aviso o grupo sobre provas, entregas e seminários que começam nas próximas horas.\n\n/help para ver os comandos")
}

func (b *Bot) cmdHelp(chatID int64) {
	text := `<b>Comandos:</b>

/upcoming [dias] — eventos dos próximos dias (padrão 7)
/today — eventos de hoje
/subjects — disciplinas cadastradas
/status — eventos e lembretes enviados
/reload — limpa o cache e verifica de novo (dono)
/help — esta ajuda`

	b.reply(chatID, text)
}

// parseDays reads the /upcoming argument: empty means the default.
func parseDays(args string) (int, error) {
	if args == "" {
		return defaultUpcomingDays, nil
	}
	days, err := strconv.Atoi(strings.Fields(args)[0])
	if err != nil || days < 1 || days > maxUpcomingDays {
		return 0, fmt.Errorf("informe um número de dias entre 1 e %d", maxUpcomingDays)
	}
	return days, nil
}

func (b *Bot) cmdUpcoming(ctx context.Context, chatID int64, args string) {
	days, err := parseDays(args)
	if err != nil {
		b.reply(chatID, "❌ "+err.Error())
		return
	}

	events, err := b.source.ListEvents(ctx)
	if err != nil {
		log.Printf("Error loading events: %v", err)
		b.reply(chatID, "❌ Não foi possível ler o calendário")
		return
	}

	now := b.now()
	until := now.Add(time.Duration(days) * 24 * time.Hour)
	var upcoming []domain.Event
	for _, e := range events {
		if e.Start.After(now) && !e.Start.After(until) {
			upcoming = append(upcoming, e)
		}
	}

	header := fmt.Sprintf("📅 <b>Próximos %d dias</b>\n\n", days)
	b.reply(chatID, header+b.formatter.FormatEventList(upcoming))
}

func (b *Bot) cmdToday(ctx context.Context, chatID int64) {
	events, err := b.source.ListEvents(ctx)
	if err != nil {
		log.Printf("Error loading events: %v", err)
		b.reply(chatID, "❌ Não foi possível ler o calendário")
		return
	}

	now := b.now()
	loc := b.formatter.Location()
	var today []domain.Event
	for _, e := range events {
		if e.IsOnDay(now, loc) {
			today = append(today, e)
		}
	}

	b.reply(chatID, "🗓 <b>Hoje</b>\n\n"+b.formatter.FormatEventList(today))
}

func (b *Bot) cmdSubjects(ctx context.Context, chatID int64) {
	subjects, err := b.storage.ListSubjects(ctx)
	if err != nil {
		log.Printf("Error listing subjects: %v", err)
		b.reply(chatID, "❌ Erro ao listar disciplinas")
		return
	}

	if len(subjects) == 0 {
		b.reply(chatID, "Nenhuma disciplina cadastrada")
		return
	}

	var sb strings.Builder
	sb.WriteString("📚 <b>Disciplinas</b>\n\n")
	for _, s := range subjects {
		sb.WriteString(fmt.Sprintf("• <b>%s</b> — %s\n", html.EscapeString(s.Code), html.EscapeString(s.Name)))
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) cmdStatus(ctx context.Context, chatID int64) {
	if b.scheduler == nil {
		b.reply(chatID, "Agendador desativado")
		return
	}

	st, err := b.scheduler.Status(ctx)
	if err != nil {
		log.Printf("Error getting status: %v", err)
	}

	b.reply(chatID, fmt.Sprintf("📊 <b>Status</b>\n\nEventos no calendário: %d\nLembretes enviados: %d", st.TotalEvents, st.Notified))
}

func (b *Bot) cmdReload(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if msg.From == nil || !b.cfg.IsOwner(msg.From.ID) {
		b.reply(chatID, "⛔ Acesso negado")
		return
	}
	if b.scheduler == nil {
		b.reply(chatID, "Agendador desativado")
		return
	}

	b.scheduler.Reload(ctx)
	b.reply(chatID, "🔄 Cache limpo, verificação executada")
}
