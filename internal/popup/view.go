package popup

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/router-for-me/linkmark/internal/bookmark"
)

const defaultWidth = 72

func (a App) View() string {
	var body string
	switch a.state {
	case StateLogin:
		body = a.viewLogin()
	case StateForm:
		body = a.viewForm()
	case StateLoading:
		body = a.viewLoading()
	case StateSuccess:
		body = a.viewSuccess()
	case StateError:
		body = a.viewError()
	}

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(T("app_title")))
	sb.WriteString("\n")
	sb.WriteString(panelStyle.Width(a.contentWidth()).Render(body))
	sb.WriteString("\n")
	sb.WriteString(a.renderStatusBar())
	return sb.String()
}

func (a App) viewLogin() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(T("login_title")))
	sb.WriteString("\n")
	sb.WriteString(valueStyle.Render(T("login_body")))
	sb.WriteString("\n\n")
	if a.notice != "" {
		sb.WriteString(warningStyle.Render(T(a.notice)))
		sb.WriteString("\n\n")
	}
	sb.WriteString(focusedFieldStyle.Render(T("login_action")))
	sb.WriteString("\n\n")
	sb.WriteString(helpStyle.Render(T("login_help")))
	return sb.String()
}

func (a App) viewForm() string {
	var sb strings.Builder
	if a.session != nil {
		user := a.session.UserInfo
		sb.WriteString(labelStyle.Render(T("signed_in_as")))
		sb.WriteString(valueStyle.Render(fmt.Sprintf("%s <%s>", user.DisplayName(), user.Email)))
		sb.WriteString("\n\n")
	}

	if a.tab == nil || a.tab.URL == "" {
		sb.WriteString(warningStyle.Render(T("no_page")))
		sb.WriteString("\n")
	} else {
		title := strings.TrimSpace(a.tab.Title)
		if title == "" {
			title = "Untitled Page"
		}
		favicon := T("no")
		if a.tab.FavIconURL != "" {
			favicon = T("yes")
		}
		sb.WriteString(row(T("page"), title))
		sb.WriteString(row(T("url"), a.tab.URL))
		sb.WriteString(row(T("favicon"), favicon))
	}
	sb.WriteString("\n")

	sb.WriteString(a.fieldLabel(T("category"), fieldCategory))
	sb.WriteString("\n")
	sb.WriteString(a.category.View())
	sb.WriteString("\n")
	if suggestions := a.suggestions(); len(suggestions) > 0 {
		chips := make([]string, 0, len(suggestions)+1)
		chips = append(chips, helpStyle.Render(T("suggestions")+":"))
		for _, s := range suggestions {
			chips = append(chips, chipStyle.Render(s))
		}
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, chips...))
		sb.WriteString("\n")
	}
	if a.formErr != "" {
		sb.WriteString(errorStyle.Render(T(a.formErr)))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString(a.fieldLabel(T("notes"), fieldNotes))
	sb.WriteString("\n")
	sb.WriteString(a.notes.View())
	sb.WriteString("\n\n")
	sb.WriteString(helpStyle.Render(T("form_help")))
	return sb.String()
}

func (a App) viewLoading() string {
	var sb strings.Builder
	sb.WriteString(a.spinner.View())
	sb.WriteString(" ")
	sb.WriteString(valueStyle.Render(T(a.loading)))
	if a.authURL != "" {
		sb.WriteString("\n\n")
		sb.WriteString(helpStyle.Render(T("auth_url_hint")))
		sb.WriteString("\n")
		sb.WriteString(valueStyle.Render(a.authURL))
	}
	return sb.String()
}

func (a App) viewSuccess() string {
	var sb strings.Builder
	sb.WriteString(successStyle.Render("✓ " + T("saved")))
	if a.savedCategory != "" {
		sb.WriteString("\n\n")
		sb.WriteString(row(T("saved_category"), a.savedCategory))
	}
	sb.WriteString("\n\n")
	sb.WriteString(helpStyle.Render(T("success_help")))
	return sb.String()
}

func (a App) viewError() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(T("error_title")))
	sb.WriteString("\n")
	sb.WriteString(errorStyle.Render(T(a.errKey)))
	sb.WriteString("\n\n")
	sb.WriteString(helpStyle.Render(T("error_help")))
	return sb.String()
}

func (a App) suggestions() []string {
	return bookmark.Suggestions(a.history, a.deps.DefaultCategories)
}

func (a App) fieldLabel(text string, f field) string {
	if a.focus == f {
		return focusedFieldStyle.Render("▸ " + text)
	}
	return labelStyle.Render("  " + text)
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}

func (a App) contentWidth() int {
	if a.width <= 0 {
		return defaultWidth
	}
	return a.width - 2
}

func (a App) renderStatusBar() string {
	left := strings.TrimSpace(a.lastLog)
	right := fmt.Sprintf("%s • %s", a.state, CurrentLocale())

	width := a.contentWidth() + 2
	contentWidth := width - 2
	if contentWidth < 0 {
		contentWidth = 0
	}

	remaining := contentWidth - lipgloss.Width(right) - 1
	if remaining < 0 {
		remaining = 0
		right = fitStringWidth(right, contentWidth)
	}
	left = fitStringWidth(left, remaining)

	gap := contentWidth - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return statusBarStyle.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

func fitStringWidth(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if lipgloss.Width(text) <= maxWidth {
		return text
	}

	out := ""
	for _, r := range text {
		next := out + string(r)
		if lipgloss.Width(next) > maxWidth {
			break
		}
		out = next
	}
	return out
}
