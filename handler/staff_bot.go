package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"HealthIntake/model"
	"HealthIntake/questionnaire"
	"HealthIntake/repo"
	"HealthIntake/service"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

const staffHelp = `Commands:
/find - find questionnaires by telegram, instagram or phone
/show - show a questionnaire by id
/delete - delete a questionnaire by id
/count - number of stored questionnaires
/cancel - abort the current command`

// replier is the part of the bot client the staff bot talks through
type replier interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// StaffBot answers staff commands in the configured chats
type StaffBot struct {
	intake  *service.Intake
	allowed map[int64]bool

	mu       sync.Mutex
	sessions map[int64]*staffSession
}

// staffSession serializes the messages of one user
type staffSession struct {
	mu    sync.Mutex
	state model.UserState
}

func NewStaffBot(intake *service.Intake, chatIDs []int64) *StaffBot {
	allowed := make(map[int64]bool, len(chatIDs))
	for _, id := range chatIDs {
		allowed[id] = true
	}
	return &StaffBot{
		intake:   intake,
		allowed:  allowed,
		sessions: make(map[int64]*staffSession),
	}
}

// Match reports whether update is a message from a staff chat
func (s *StaffBot) Match(update *models.Update) bool {
	return update.Message != nil && update.Message.From != nil && s.allowed[update.Message.Chat.ID]
}

// Handler is registered with the bot for updates accepted by Match
func (s *StaffBot) Handler(ctx context.Context, b *bot.Bot, update *models.Update) {
	s.handle(ctx, b, update)
}

func (s *StaffBot) session(userID int64) *staffSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &staffSession{state: model.UserState{State: model.StateIdle}}
		s.sessions[userID] = sess
	}
	return sess
}

func (s *StaffBot) handle(ctx context.Context, r replier, update *models.Update) {
	if !s.Match(update) {
		return
	}
	msg := update.Message
	chatID := msg.Chat.ID
	input := strings.TrimSpace(msg.Text)

	log.Debug().Str("user", msg.From.Username).Int64("chat_id", chatID).Str("text", input).Msg("staff bot message")

	sess := s.session(msg.From.ID)
	sess.mu.Lock()
	replies := s.step(ctx, &sess.state, input)
	sess.mu.Unlock()

	for _, text := range replies {
		for _, part := range repo.SplitMessage(text, repo.MaxMessageLength) {
			_, err := r.SendMessage(ctx, &bot.SendMessageParams{
				ChatID:    chatID,
				Text:      part,
				ParseMode: models.ParseModeHTML,
			})
			if err != nil {
				log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send staff bot reply")
			}
		}
	}
}

// step advances the conversation of one user and returns the replies
func (s *StaffBot) step(ctx context.Context, st *model.UserState, input string) []string {
	if input == "/cancel" {
		st.State, st.LastCommand = model.StateIdle, ""
		return []string{"Cancelled."}
	}

	switch st.State {
	case model.StateIdle:
		cmd, arg, _ := strings.Cut(input, " ")
		// commands may carry the bot name in groups: /find@intake_bot
		cmd, _, _ = strings.Cut(cmd, "@")
		arg = strings.TrimSpace(arg)
		switch cmd {
		case "/start":
			return []string{"Hello! I look up and manage submitted questionnaires.\n\n" + staffHelp}
		case "/help":
			return []string{staffHelp}
		case "/count":
			n, err := s.intake.Count(ctx)
			if err != nil {
				log.Error().Err(err).Msg("failed to count questionnaires")
				return []string{"Could not count questionnaires, please try again."}
			}
			return []string{fmt.Sprintf("Stored questionnaires: %d", n)}
		case "/find":
			return s.await(ctx, st, model.StateAwaitingContact, cmd, arg, "Send a telegram or instagram username, or a phone number.")
		case "/show":
			return s.await(ctx, st, model.StateAwaitingShowID, cmd, arg, "Send the questionnaire id.")
		case "/delete":
			return s.await(ctx, st, model.StateAwaitingDeleteID, cmd, arg, "Send the id of the questionnaire to delete.")
		default:
			return []string{"I didn't understand that command. Use /help."}
		}
	case model.StateAwaitingContact:
		st.State, st.LastCommand = model.StateIdle, ""
		return s.find(ctx, input)
	case model.StateAwaitingShowID:
		st.State, st.LastCommand = model.StateIdle, ""
		return s.show(ctx, input)
	case model.StateAwaitingDeleteID:
		st.State, st.LastCommand = model.StateIdle, ""
		return s.delete(ctx, input)
	default:
		st.State, st.LastCommand = model.StateIdle, ""
		return []string{"An error occurred."}
	}
}

// await runs cmd right away when it came with an argument, otherwise waits for one
func (s *StaffBot) await(ctx context.Context, st *model.UserState, next int, cmd, arg, prompt string) []string {
	if arg == "" {
		st.State, st.LastCommand = next, cmd
		return []string{prompt}
	}
	st.State = next
	return s.step(ctx, st, arg)
}

func (s *StaffBot) find(ctx context.Context, input string) []string {
	found, err := s.intake.Search(ctx, contactFromInput(input))
	switch {
	case errors.Is(err, model.ErrContactRequired):
		return []string{"That doesn't look like a username or phone number."}
	case err != nil:
		log.Error().Err(err).Msg("staff lookup failed")
		return []string{"Lookup failed, please try again."}
	case len(found) == 0:
		return []string{"No questionnaires found."}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d:\n", len(found))
	for _, sum := range found {
		fmt.Fprintf(&b, "\n<code>%s</code> %s, %s", questionnaire.EscapeHTML(sum.ID), sum.Category,
			sum.CreatedAt.Format("2006-01-02 15:04"))
	}
	return []string{b.String()}
}

func (s *StaffBot) show(ctx context.Context, id string) []string {
	sub, err := s.intake.Get(ctx, id)
	switch {
	case errors.Is(err, model.ErrSubmissionNotFound):
		return []string{fmt.Sprintf("Questionnaire <code>%s</code> not found.", questionnaire.EscapeHTML(id))}
	case err != nil:
		log.Error().Err(err).Str("id", id).Msg("staff show failed")
		return []string{"Could not load the questionnaire, please try again."}
	}
	return []string{sub.Rendered}
}

func (s *StaffBot) delete(ctx context.Context, id string) []string {
	err := s.intake.Delete(ctx, id)
	switch {
	case errors.Is(err, model.ErrSubmissionNotFound):
		return []string{fmt.Sprintf("Questionnaire <code>%s</code> not found.", questionnaire.EscapeHTML(id))}
	case err != nil:
		log.Error().Err(err).Str("id", id).Msg("staff delete failed")
		return []string{"Could not delete the questionnaire, please try again."}
	}
	return []string{fmt.Sprintf("Questionnaire <code>%s</code> deleted.", questionnaire.EscapeHTML(id))}
}

// contactFromInput reads digits with phone punctuation as a phone number and
// anything else as a username that may be either a telegram or an instagram handle
func contactFromInput(input string) model.Contact {
	var digits, other int
	for _, r := range input {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsSpace(r) || strings.ContainsRune("+-()", r):
		default:
			other++
		}
	}
	if digits > 0 && other == 0 {
		return model.Contact{Phone: input}
	}
	return model.Contact{Telegram: input, Instagram: input}
}
