package popup

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/router-for-me/linkmark/internal/bookmark"
	"github.com/router-for-me/linkmark/internal/session"
	"github.com/router-for-me/linkmark/internal/tab"
	log "github.com/sirupsen/logrus"
)

// State is the screen the popup shows. Exactly one is active at a time.
type State int

const (
	StateLogin State = iota
	StateForm
	StateLoading
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateLogin:
		return "login"
	case StateForm:
		return "form"
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Sessions signs the user in and out and reads the persisted session.
type Sessions interface {
	Load(ctx context.Context) (*session.Session, error)
	Authenticate(ctx context.Context) (*session.Session, error)
	Logout(ctx context.Context) error
	AccessToken(ctx context.Context) (string, error)
}

// Saver posts bookmark records.
type Saver interface {
	Save(ctx context.Context, token string, rec bookmark.Record) error
}

// CategoryHistory keeps the recently used categories.
type CategoryHistory interface {
	Load(ctx context.Context) ([]string, error)
	Add(ctx context.Context, category string) ([]string, error)
}

// Deps are the popup's collaborators.
type Deps struct {
	Sessions          Sessions
	Bookmarks         Saver
	History           CategoryHistory
	Tabs              tab.Source
	DefaultCategories []string

	// Hook, when set, feeds the status bar with log lines.
	Hook *LogHook
	// Changes receives a value whenever the persisted state changes on disk.
	Changes <-chan struct{}
	// Now defaults to time.Now.
	Now func() time.Time
}

// AuthURLMsg carries the authorization URL while sign-in waits for the browser.
type AuthURLMsg string

type sessionLoadedMsg struct {
	sess *session.Session
	err  error
}

type authDoneMsg struct {
	sess *session.Session
	err  error
}

type logoutDoneMsg struct{ err error }

type tabLoadedMsg struct {
	tab *tab.Tab
	err error
}

type historyLoadedMsg struct{ categories []string }

type saveDoneMsg struct {
	category string
	history  []string
	noPage   bool
	err      error
}

type storeChangedMsg struct{}

type logLineMsg string

type field int

const (
	fieldCategory field = iota
	fieldNotes
)

// Loading message keys. loadingStart marks the initial session lookup.
const (
	loadingStart   = "starting"
	loadingAuth    = "authenticating"
	loadingSave    = "saving"
	loadingSignOut = "signing_out"
)

// App is the root bubbletea model of the popup.
type App struct {
	ctx  context.Context
	deps Deps

	state   State
	session *session.Session

	// i18n keys for the active payload
	loading string
	errKey  string
	notice  string
	formErr string

	authURL       string
	savedCategory string
	// staleSession is set when the store changed while an operation was in flight.
	staleSession bool

	tab      *tab.Tab
	history  []string
	category textinput.Model
	notes    textarea.Model
	focus    field
	spinner  spinner.Model

	lastLog string
	width   int
	height  int
}

// NewApp creates the popup model. It starts in the loading state until the persisted
// session has been read.
func NewApp(ctx context.Context, deps Deps) App {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 100
	ti.Placeholder = T("category_ph")
	ti.ShowSuggestions = true
	ti.KeyMap.AcceptSuggestion = key.NewBinding(key.WithKeys("right"))

	ta := textarea.New()
	ta.Placeholder = T("notes_ph")
	ta.ShowLineNumbers = false
	ta.CharLimit = 2000
	ta.SetHeight(3)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	return App{
		ctx:      ctx,
		deps:     deps,
		state:    StateLoading,
		loading:  loadingStart,
		category: ti,
		notes:    ta,
		spinner:  sp,
	}
}

// State returns the active screen.
func (a App) State() State {
	return a.state
}

func (a App) Init() tea.Cmd {
	return tea.Batch(a.loadSession(), a.spinner.Tick, a.waitForLog(), a.waitForChange())
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resizeInputs()
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case logLineMsg:
		a.lastLog = string(msg)
		return a, a.waitForLog()

	case storeChangedMsg:
		return a, tea.Batch(a.loadSession(), a.waitForChange())

	case sessionLoadedMsg:
		return a.onSessionLoaded(msg)

	case AuthURLMsg:
		if a.state == StateLoading && a.loading == loadingAuth {
			a.authURL = string(msg)
		}
		return a, nil

	case authDoneMsg:
		if msg.err != nil {
			log.WithError(msg.err).WithField("state", StateError).Error("sign-in failed")
			return a.finishOperation(a.enterError(errorKey(msg.err, "err_auth")))
		}
		a.session = msg.sess
		return a.finishOperation(a.enterForm())

	case logoutDoneMsg:
		return a.finishOperation(a.onLogoutDone(msg))

	case tabLoadedMsg:
		a.tab = msg.tab
		if msg.err != nil {
			log.WithField("source", "tab").Debugf("no active page: %v", msg.err)
		}
		return a, nil

	case historyLoadedMsg:
		a.history = msg.categories
		a.category.SetSuggestions(bookmark.Suggestions(a.history, a.deps.DefaultCategories))
		return a, nil

	case saveDoneMsg:
		return a.finishOperation(a.onSaveDone(msg))

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	if a.state != StateForm {
		return a, nil
	}
	var cmd tea.Cmd
	if a.focus == fieldCategory {
		a.category, cmd = a.category.Update(msg)
	} else {
		a.notes, cmd = a.notes.Update(msg)
	}
	return a, cmd
}

func (a App) onSessionLoaded(msg sessionLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		log.WithError(msg.err).Warn("reading session failed, showing sign-in")
	}
	// An operation in flight decides the next state itself; the session is read
	// again once it completes.
	if a.state == StateLoading && a.loading != loadingStart {
		a.staleSession = true
		return a, nil
	}
	a.session = msg.sess
	switch {
	case a.session == nil && a.state != StateLogin:
		return a.enterLogin("")
	case a.session != nil && (a.state == StateLogin || a.state == StateLoading):
		return a.enterForm()
	}
	return a, nil
}

// finishOperation re-reads the session when the store changed during the operation.
func (a App) finishOperation(next tea.Model, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	app, ok := next.(App)
	if !ok || !app.staleSession {
		return next, cmd
	}
	app.staleSession = false
	return app, tea.Batch(cmd, app.loadSession())
}

func (a App) onLogoutDone(msg logoutDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err == nil {
		a.session = nil
		return a.enterLogin("")
	}
	log.WithError(msg.err).Warn("sign-out incomplete")
	msgKey := errorKey(msg.err, "err_logout")
	if msgKey == "err_revoke" {
		a.session = nil
		return a.enterLogin(msgKey)
	}
	return a.enterError(msgKey)
}

func (a App) onSaveDone(msg saveDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		msgKey := "err_save"
		if msg.noPage {
			msgKey = "err_no_page"
		}
		log.WithError(msg.err).WithField("state", StateError).Error("bookmark not saved")
		return a.enterError(msgKey)
	}
	a.state = StateSuccess
	a.savedCategory = msg.category
	if msg.history != nil {
		a.history = msg.history
		a.category.SetSuggestions(bookmark.Suggestions(a.history, a.deps.DefaultCategories))
	}
	log.WithField("category", msg.category).Info("bookmark saved")
	return a, nil
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()
	if k == "ctrl+c" {
		return a, tea.Quit
	}
	if a.state == StateLoading {
		return a, nil
	}
	if k == "ctrl+o" {
		return a.startLogout()
	}

	switch a.state {
	case StateLogin:
		switch k {
		case "q", "esc":
			return a, tea.Quit
		case "L":
			ToggleLocale()
		case "enter", "l":
			return a.startLogin()
		}
		return a, nil
	case StateForm:
		return a.handleFormKey(msg)
	case StateSuccess, StateError:
		switch k {
		case "q", "esc":
			return a, tea.Quit
		case "L":
			ToggleLocale()
		case "enter", "r":
			if a.session == nil {
				return a.enterLogin("")
			}
			return a.enterForm()
		}
	}
	return a, nil
}

func (a App) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return a, tea.Quit
	case "tab", "shift+tab":
		return a, a.switchField()
	case "ctrl+s":
		return a.submit()
	case "enter":
		if a.focus == fieldCategory {
			if strings.TrimSpace(a.category.Value()) != "" {
				return a.submit()
			}
			return a, nil
		}
	}

	var cmd tea.Cmd
	if a.focus == fieldCategory {
		a.category, cmd = a.category.Update(msg)
		if a.formErr != "" && strings.TrimSpace(a.category.Value()) != "" {
			a.formErr = ""
		}
	} else {
		a.notes, cmd = a.notes.Update(msg)
	}
	return a, cmd
}

func (a *App) switchField() tea.Cmd {
	if a.focus == fieldCategory {
		a.focus = fieldNotes
		a.category.Blur()
		return a.notes.Focus()
	}
	a.focus = fieldCategory
	a.notes.Blur()
	return a.category.Focus()
}

func (a App) submit() (tea.Model, tea.Cmd) {
	category := a.category.Value()
	if err := bookmark.Validate(category); err != nil {
		a.formErr = "err_category"
		return a, nil
	}
	a.formErr = ""
	a.state = StateLoading
	a.loading = loadingSave
	return a, a.saveBookmark(category, a.notes.Value())
}

func (a App) startLogin() (tea.Model, tea.Cmd) {
	a.state = StateLoading
	a.loading = loadingAuth
	a.authURL = ""
	a.notice = ""
	sessions, ctx := a.deps.Sessions, a.ctx
	return a, func() tea.Msg {
		sess, err := sessions.Authenticate(ctx)
		return authDoneMsg{sess: sess, err: err}
	}
}

func (a App) startLogout() (tea.Model, tea.Cmd) {
	a.state = StateLoading
	a.loading = loadingSignOut
	sessions, ctx := a.deps.Sessions, a.ctx
	return a, func() tea.Msg {
		return logoutDoneMsg{err: sessions.Logout(ctx)}
	}
}

func (a App) enterLogin(noticeKey string) (tea.Model, tea.Cmd) {
	a.state = StateLogin
	a.notice = noticeKey
	a.authURL = ""
	a.resetForm()
	return a, nil
}

func (a App) enterError(msgKey string) (tea.Model, tea.Cmd) {
	a.state = StateError
	a.errKey = msgKey
	return a, nil
}

// enterForm clears the form, focuses the category and reloads the page and history.
func (a App) enterForm() (tea.Model, tea.Cmd) {
	a.state = StateForm
	a.notice = ""
	a.resetForm()
	focus := a.category.Focus()
	return a, tea.Batch(focus, a.loadTab(), a.loadHistory())
}

func (a *App) resetForm() {
	a.category.Reset()
	a.notes.Reset()
	a.notes.Blur()
	a.category.Blur()
	a.focus = fieldCategory
	a.formErr = ""
	a.savedCategory = ""
}

func (a *App) resizeInputs() {
	w := a.contentWidth() - 6
	if w < 10 {
		w = 10
	}
	a.category.Width = w
	a.notes.SetWidth(w)
}

func (a App) loadSession() tea.Cmd {
	sessions, ctx := a.deps.Sessions, a.ctx
	return func() tea.Msg {
		sess, err := sessions.Load(ctx)
		return sessionLoadedMsg{sess: sess, err: err}
	}
}

func (a App) loadTab() tea.Cmd {
	src, ctx := a.deps.Tabs, a.ctx
	if src == nil {
		return nil
	}
	return func() tea.Msg {
		t, err := src.ActiveTab(ctx)
		return tabLoadedMsg{tab: t, err: err}
	}
}

func (a App) loadHistory() tea.Cmd {
	history, ctx := a.deps.History, a.ctx
	if history == nil {
		return nil
	}
	return func() tea.Msg {
		list, err := history.Load(ctx)
		if err != nil {
			log.WithError(err).Warn("reading category history failed")
		}
		return historyLoadedMsg{categories: list}
	}
}

// saveBookmark reads the active tab at submit time, posts the record with the stored
// token and records the category once the backend accepted it.
func (a App) saveBookmark(category, notes string) tea.Cmd {
	deps, ctx := a.deps, a.ctx
	var email string
	if a.session != nil {
		email = a.session.UserInfo.Email
	}
	return func() tea.Msg {
		var t *tab.Tab
		var err error
		if deps.Tabs != nil {
			t, err = deps.Tabs.ActiveTab(ctx)
		}
		if err == nil && (t == nil || strings.TrimSpace(t.URL) == "") {
			err = tab.ErrNoActiveTab
		}
		if err != nil {
			return saveDoneMsg{noPage: true, err: err}
		}

		token, err := deps.Sessions.AccessToken(ctx)
		if err != nil {
			return saveDoneMsg{err: err}
		}
		rec := bookmark.NewRecord(*t, category, notes, email, deps.Now())
		if err = deps.Bookmarks.Save(ctx, token, rec); err != nil {
			return saveDoneMsg{err: err}
		}

		var history []string
		if deps.History != nil {
			if history, err = deps.History.Add(ctx, rec.Category); err != nil {
				log.WithError(err).WithField("category", rec.Category).Warn("updating category history failed")
				history = nil
			}
		}
		return saveDoneMsg{category: rec.Category, history: history}
	}
}

func (a App) waitForLog() tea.Cmd {
	if a.deps.Hook == nil {
		return nil
	}
	ch := a.deps.Hook.Chan()
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return nil
		}
		return logLineMsg(line)
	}
}

func (a App) waitForChange() tea.Cmd {
	ch := a.deps.Changes
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

// errorKey maps an error to the message key shown to the user.
func errorKey(err error, fallback string) string {
	var authErr *session.AuthError
	if errors.As(err, &authErr) {
		switch authErr.Message {
		case session.MsgAuthFailed:
			return "err_auth"
		case session.MsgRevokeFailed:
			return "err_revoke"
		case session.MsgLogoutFailed:
			return "err_logout"
		}
	}
	return fallback
}

// Run starts the popup on output (os.Stdout when nil). bind, when set, receives the
// program before it starts so other goroutines can Send messages such as AuthURLMsg.
func Run(app App, output io.Writer, bind func(*tea.Program)) error {
	if output == nil {
		output = os.Stdout
	}
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithOutput(output), tea.WithContext(app.ctx))
	if bind != nil {
		bind(p)
	}
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && app.ctx.Err() != nil {
		return nil
	}
	return err
}
