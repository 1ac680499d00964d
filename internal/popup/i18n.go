package popup

import (
	"github.com/router-for-me/linkmark/internal/bookmark"
	"github.com/router-for-me/linkmark/internal/session"
)

// Supported locales: "en" (default) and "zh".

var currentLocale = "en"

// SetLocale changes the active locale. Unknown locales are ignored.
func SetLocale(locale string) {
	if _, ok := locales[locale]; ok {
		currentLocale = locale
	}
}

// CurrentLocale returns the active locale code.
func CurrentLocale() string {
	return currentLocale
}

// ToggleLocale switches between en and zh.
func ToggleLocale() {
	if currentLocale == "zh" {
		currentLocale = "en"
	} else {
		currentLocale = "zh"
	}
}

// T returns the translated string for key, falling back to English and then the key.
func T(key string) string {
	if m, ok := locales[currentLocale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if v, ok := enStrings[key]; ok {
		return v
	}
	return key
}

var locales = map[string]map[string]string{
	"en": enStrings,
	"zh": zhStrings,
}

var enStrings = map[string]string{
	"app_title":      "LinkMark",
	"starting":       "Loading...",
	"login_title":    "Save pages to your LinkMark account",
	"login_body":     "Sign in with your Google account to start saving bookmarks.",
	"login_action":   "[enter] Sign in with Google",
	"login_help":     "enter/l: sign in • L: language • q: quit",
	"authenticating": "Authenticating with Gmail...",
	"auth_url_hint":  "If the browser did not open, visit:",
	"saving":         "Saving bookmark...",
	"signing_out":    "Signing out...",
	"signed_in_as":   "Signed in as",
	"page":           "Page",
	"url":            "URL",
	"favicon":        "Favicon",
	"yes":            "yes",
	"no":             "none",
	"no_page":        "No page detected yet.",
	"category":       "Category",
	"notes":          "Notes",
	"category_ph":    "e.g. Work, Research",
	"notes_ph":       "Optional notes",
	"suggestions":    "Recent",
	"form_help":      "tab: switch field • →: accept suggestion • ctrl+s: save • ctrl+o: sign out • esc: quit",
	"saved":          "Bookmark saved successfully!",
	"saved_category": "Saved to",
	"success_help":   "enter/r: save another • ctrl+o: sign out • q: quit",
	"error_title":    "Something went wrong",
	"error_help":     "enter/r: retry • ctrl+o: sign out • q: quit",
	"err_auth":       session.MsgAuthFailed,
	"err_revoke":     session.MsgRevokeFailed,
	"err_logout":     session.MsgLogoutFailed,
	"err_category":   bookmark.MsgCategoryRequired,
	"err_no_page":    bookmark.MsgNoPageInfo,
	"err_save":       bookmark.MsgSaveFailed,
}

var zhStrings = map[string]string{
	"app_title":      "LinkMark",
	"starting":       "加载中...",
	"login_title":    "将网页保存到你的 LinkMark 账户",
	"login_body":     "使用 Google 账户登录后即可保存书签。",
	"login_action":   "[enter] 使用 Google 登录",
	"login_help":     "enter/l: 登录 • L: 语言 • q: 退出",
	"authenticating": "正在通过 Gmail 认证...",
	"auth_url_hint":  "如果浏览器没有打开，请访问：",
	"saving":         "正在保存书签...",
	"signing_out":    "正在退出登录...",
	"signed_in_as":   "当前用户",
	"page":           "页面",
	"url":            "网址",
	"favicon":        "图标",
	"yes":            "有",
	"no":             "无",
	"no_page":        "尚未检测到页面。",
	"category":       "分类",
	"notes":          "备注",
	"category_ph":    "例如：工作、研究",
	"notes_ph":       "可选备注",
	"suggestions":    "最近使用",
	"form_help":      "tab: 切换输入框 • →: 接受建议 • ctrl+s: 保存 • ctrl+o: 退出登录 • esc: 退出",
	"saved":          "书签保存成功！",
	"saved_category": "已保存到",
	"success_help":   "enter/r: 继续保存 • ctrl+o: 退出登录 • q: 退出",
	"error_title":    "出错了",
	"error_help":     "enter/r: 重试 • ctrl+o: 退出登录 • q: 退出",
	"err_auth":       "认证失败，请重试。",
	"err_revoke":     "已在本地退出登录，但令牌未能撤销。",
	"err_logout":     "退出登录失败，请重试。",
	"err_category":   "请为此书签输入分类。",
	"err_no_page":    "无法获取当前页面信息。",
	"err_save":       "保存书签失败，请重试。",
}
