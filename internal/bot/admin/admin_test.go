package admin

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/danilaloko/eco-bot/internal/auth"
	"github.com/danilaloko/eco-bot/internal/deadline"
	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/repository/memstore"
	"github.com/danilaloko/eco-bot/internal/service"
)

const adminID = 900

type fakeAPI struct {
	mu       sync.Mutex
	messages []tgbotapi.MessageConfig
	edits    []tgbotapi.EditMessageTextConfig
	answers  []tgbotapi.CallbackConfig
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch msg := c.(type) {
	case tgbotapi.MessageConfig:
		f.messages = append(f.messages, msg)
	case tgbotapi.EditMessageTextConfig:
		f.edits = append(f.edits, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.answers = append(f.answers, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatalf("no messages sent")
	}
	return f.messages[len(f.messages)-1]
}

type harness struct {
	bot          *Bot
	api          *fakeAPI
	store        *memstore.Store
	tasks        *service.TaskService
	registration *service.RegistrationService
	submissions  *service.SubmissionService
	potential    *service.PotentialMessageService
	tokens       *auth.TokenManager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memstore.New()
	admins := auth.NewAdminAllowList([]int64{adminID})
	tokens := auth.NewTokenManager("test-secret", 30)

	registration := service.NewRegistrationService(service.RegistrationDependencies{Store: store, Admins: admins})
	tasks := service.NewTaskService(service.TaskDependencies{Store: store, Deadlines: deadline.New(time.UTC)})
	submissions := service.NewSubmissionService(service.SubmissionDependencies{Store: store, Admins: admins, Location: time.UTC})
	moderation := service.NewModerationService(service.ModerationDependencies{Store: store, Submissions: submissions})
	potential := service.NewPotentialMessageService(service.PotentialMessageDependencies{Store: store, Admins: admins})
	support := service.NewSupportService(service.SupportDependencies{Store: store, Admins: admins})

	api := &fakeAPI{}
	b := New(Dependencies{
		API:        api,
		Admins:     admins,
		Tokens:     tokens,
		Tasks:      tasks,
		Moderation: moderation,
		Potential:  potential,
		Support:    support,
		Analytics:  service.NewAnalyticsService(store, nil),
		Location:   time.UTC,
	})
	return &harness{
		bot: b, api: api, store: store, tasks: tasks,
		registration: registration, submissions: submissions, potential: potential, tokens: tokens,
	}
}

func command(from int64, text string) tgbotapi.Update {
	length := len(text)
	if i := strings.IndexByte(text, ' '); i > 0 {
		length = i
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: from},
		Chat:     &tgbotapi.Chat{ID: from},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}}
}

func (h *harness) send(t *testing.T, from int64, text string) string {
	t.Helper()
	h.bot.HandleUpdate(context.Background(), command(from, text))
	return h.api.last(t).Text
}

func (h *harness) participant(t *testing.T, id int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.registration.Touch(ctx, domain.Identity{ID: id, Username: "p"}); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if _, err := h.registration.Start(ctx, id); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, answer := range []string{"Petrov", "Ivan", "individual"} {
		if _, err := h.registration.Advance(ctx, id, answer); err != nil {
			t.Fatalf("Advance %q: %v", answer, err)
		}
	}
}

func (h *harness) task(t *testing.T, title string) *domain.Task {
	t.Helper()
	task, err := h.tasks.Create(context.Background(), adminID, service.TaskInput{
		Title: title, Week: 10, Deadline: "01.01.2099 12:00",
	})
	if err != nil {
		t.Fatalf("Create task: %v", err)
	}
	return task
}

func TestOutsiderIsRefused(t *testing.T) {
	h := newHarness(t)
	if got := h.send(t, 5, "/stats"); got != "This command is for organizers only." {
		t.Fatalf("got %q", got)
	}

	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "cb", From: &tgbotapi.User{ID: 5}, Data: "approve:1",
	}})
	if len(h.api.answers) != 1 || h.api.answers[0].Text != "This command is for organizers only." {
		t.Fatalf("callback answers: %+v", h.api.answers)
	}
}

func TestTaskCommands(t *testing.T) {
	h := newHarness(t)

	got := h.send(t, adminID, "/newtask Plant a tree|Plant one tree in your yard|-|12|01.06.2099 18:00")
	if !strings.Contains(got, "Created #1 [open] week 12: Plant a tree") || !strings.Contains(got, "01.06.2099 18:00") {
		t.Fatalf("newtask: %q", got)
	}
	if got := h.send(t, adminID, "/newtask Plant a tree|again|-|12"); !strings.Contains(got, "already exists") {
		t.Fatalf("duplicate title: %q", got)
	}
	if got := h.send(t, adminID, "/newtask broken"); !strings.HasPrefix(got, "Usage: /newtask") {
		t.Fatalf("usage: %q", got)
	}

	if got := h.send(t, adminID, "/edittask 1 link https://example.org/tree"); !strings.Contains(got, "Link: https://example.org/tree") {
		t.Fatalf("edittask: %q", got)
	}
	if got := h.send(t, adminID, "/edittask 1 week x"); got != "The week must be a number from 1 to 53." {
		t.Fatalf("bad week: %q", got)
	}

	if got := h.send(t, adminID, "/tasks 12"); !strings.Contains(got, "#1 [open] week 12") {
		t.Fatalf("tasks: %q", got)
	}
	if got := h.send(t, adminID, "/tasks 3"); got != "No tasks yet. Create one with /newtask." {
		t.Fatalf("filtered tasks: %q", got)
	}

	if got := h.send(t, adminID, "/archive 1"); got != "Task #1 is now archived." {
		t.Fatalf("archive: %q", got)
	}
	if got := h.send(t, adminID, "/open 1"); got != "Task #1 is now open." {
		t.Fatalf("open: %q", got)
	}
	if got := h.send(t, adminID, "/deltask 1"); got != "Task #1 deleted." {
		t.Fatalf("deltask: %q", got)
	}
	if got := h.send(t, adminID, "/task 1"); got != "Nothing found with this id." {
		t.Fatalf("task after delete: %q", got)
	}
}

func TestScheduledTaskCommands(t *testing.T) {
	h := newHarness(t)

	got := h.send(t, adminID, "/newtask Clean the park|Bring gloves|-|20|01.06.2099 18:00|01.05.2099 10:00")
	if !strings.Contains(got, "Opens: 01.05.2099 10:00") {
		t.Fatalf("scheduled newtask: %q", got)
	}
	if got := h.send(t, adminID, "/tasks"); !strings.Contains(got, "(opens 01.05.2099 10:00)") {
		t.Fatalf("tasks: %q", got)
	}
	if got := h.send(t, adminID, "/edittask 1 opens 02.06.2099"); !strings.HasPrefix(got, "The opening date is not valid.") {
		t.Fatalf("opening after deadline: %q", got)
	}
	if got := h.send(t, adminID, "/edittask 1 opens now"); strings.Contains(got, "Opens:") {
		t.Fatalf("opens now must clear the schedule: %q", got)
	}
}

func TestPendingApproveByCallback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.participant(t, 10)
	task := h.task(t, "Collect batteries")

	res, err := h.submissions.Submit(ctx, 10, task.ID, domain.NewTextPayload("https://t.me/post/1"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	h.send(t, adminID, "/pending")
	pending := h.api.last(t)
	if !strings.Contains(pending.Text, "Report #1 by Ivan Petrov") || !strings.Contains(pending.Text, "https://t.me/post/1") {
		t.Fatalf("pending text: %q", pending.Text)
	}
	markup, ok := pending.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || *markup.InlineKeyboard[0][0].CallbackData != "approve:1" {
		t.Fatalf("markup: %#v", pending.ReplyMarkup)
	}

	h.bot.HandleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: adminID},
		Message: &tgbotapi.Message{MessageID: 77, Chat: &tgbotapi.Chat{ID: adminID}, Text: pending.Text},
		Data:    "approve:1",
	}})
	if len(h.api.edits) != 1 || !strings.HasSuffix(h.api.edits[0].Text, "Report #1 approved.") || h.api.edits[0].MessageID != 77 {
		t.Fatalf("edits: %+v", h.api.edits)
	}

	sub, err := h.store.Repos().Submissions.Get(ctx, res.Submission.ID)
	if err != nil || sub.Status != domain.SubmissionApproved || sub.DecidedBy == nil || *sub.DecidedBy != adminID {
		t.Fatalf("submission after approve: %+v %v", sub, err)
	}

	if got := h.send(t, adminID, "/reject 1 blurry"); got != "This report has already been reviewed." {
		t.Fatalf("second decision: %q", got)
	}
	if got := h.send(t, adminID, "/pending"); got != "No reports waiting for review." {
		t.Fatalf("pending after approve: %q", got)
	}
}

func TestPotentialBindAndDismiss(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.participant(t, 20)
	task := h.task(t, "Recycle plastic bottles")

	receivedAt := time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC)
	first, err := h.potential.Capture(ctx, 20, domain.NewTextPayload("I recycled plastic bottles today"), receivedAt)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	second, err := h.potential.Capture(ctx, 20, domain.NewTextPayload("hello"), receivedAt)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	h.send(t, adminID, "/potential")
	h.api.mu.Lock()
	listing := h.api.messages[len(h.api.messages)-2]
	h.api.mu.Unlock()
	if !strings.Contains(listing.Text, "Message #1 from user 20") {
		t.Fatalf("potential listing: %q", listing.Text)
	}
	markup := listing.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	last := markup.InlineKeyboard[len(markup.InlineKeyboard)-1][0]
	if *last.CallbackData != "dismiss:1" {
		t.Fatalf("dismiss button: %q", *last.CallbackData)
	}

	got := h.send(t, adminID, "/bind 1 "+itoa(task.ID))
	if !strings.Contains(got, "Message #1 bound to \"Recycle plastic bottles\" as approved report #1 (on time).") {
		t.Fatalf("bind: %q", got)
	}
	sub, err := h.store.Repos().Submissions.Get(ctx, 1)
	if err != nil || !sub.ReceivedAt.Equal(first.ReceivedAt) || sub.Status != domain.SubmissionApproved {
		t.Fatalf("bound submission: %+v %v", sub, err)
	}
	if got := h.send(t, adminID, "/bind 1 "+itoa(task.ID)); got != "This message has already been processed." {
		t.Fatalf("rebind: %q", got)
	}

	h.bot.HandleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: adminID},
		Message: &tgbotapi.Message{MessageID: 5, Chat: &tgbotapi.Chat{ID: adminID}, Text: "Message #2"},
		Data:    "dismiss:" + itoa(second.ID),
	}})
	pm, err := h.potential.Get(ctx, second.ID)
	if err != nil || pm.Status != domain.PotentialDismissed {
		t.Fatalf("dismissed message: %+v %v", pm, err)
	}
}

func TestStatsSupportAndDashboard(t *testing.T) {
	h := newHarness(t)
	h.participant(t, 30)
	h.task(t, "Bring a reusable bag")

	got := h.send(t, adminID, "/stats")
	if !strings.Contains(got, "Participants: 1 (registered 1)") || !strings.Contains(got, "Tasks: open 1") {
		t.Fatalf("stats: %q", got)
	}
	if got := h.send(t, adminID, "/support"); got != "No open support requests." {
		t.Fatalf("support: %q", got)
	}
	if got := h.send(t, adminID, "/user 30"); !strings.Contains(got, "Ivan Petrov") || !strings.Contains(got, "0 of 1 open tasks") {
		t.Fatalf("user: %q", got)
	}

	got = h.send(t, adminID, "/dashboard")
	lines := strings.Split(got, "\n")
	if len(lines) < 2 {
		t.Fatalf("dashboard: %q", got)
	}
	claims, err := h.tokens.ParseToken(lines[1])
	if err != nil || claims.AdminID != adminID {
		t.Fatalf("dashboard token: %+v %v", claims, err)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
