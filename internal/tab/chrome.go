package tab

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// ChromeSource reads the active tab from a Chrome started with
// --remote-debugging-port. It only lists targets; it never attaches to or closes them.
type ChromeSource struct {
	URL     string
	Timeout time.Duration
	// Client fetches /json/list for favicons. Defaults to http.DefaultClient.
	Client *http.Client

	// targets defaults to listing page targets over DevTools.
	targets func(ctx context.Context) ([]*target.Info, error)
	// favicons defaults to reading faviconUrl from the /json/list endpoint.
	favicons func(ctx context.Context) (map[target.ID]string, error)
}

// NewChromeSource returns a source for the DevTools endpoint at devtoolsURL.
func NewChromeSource(devtoolsURL string) *ChromeSource {
	return &ChromeSource{URL: strings.TrimRight(devtoolsURL, "/"), Timeout: 5 * time.Second}
}

// ActiveTab returns the foreground page, which Chrome lists first among page targets.
// A foreground page without a URL yields ErrNoActiveTab; any scheme is accepted.
func (c *ChromeSource) ActiveTab(ctx context.Context) (*Tab, error) {
	list := c.targets
	if list == nil {
		list = c.listTargets
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	infos, err := list(ctx)
	if err != nil {
		return nil, fmt.Errorf("tab: list chrome targets: %w", err)
	}
	for _, info := range infos {
		if info == nil || info.Type != "page" {
			continue
		}
		pageURL := strings.TrimSpace(info.URL)
		if pageURL == "" {
			return nil, ErrNoActiveTab
		}
		return &Tab{
			Title:      strings.TrimSpace(info.Title),
			URL:        pageURL,
			FavIconURL: c.favicon(ctx, info.TargetID),
		}, nil
	}
	return nil, ErrNoActiveTab
}

// favicon looks up the page icon. Failures leave it empty.
func (c *ChromeSource) favicon(ctx context.Context, id target.ID) string {
	lookup := c.favicons
	if lookup == nil {
		lookup = c.listFavicons
	}
	icons, err := lookup(ctx)
	if err != nil {
		log.Debugf("chrome favicon lookup failed: %v", err)
		return ""
	}
	return icons[id]
}

func (c *ChromeSource) listFavicons(ctx context.Context) (map[target.ID]string, error) {
	endpoint, err := jsonListURL(c.URL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s returned invalid JSON", endpoint)
	}
	icons := make(map[target.ID]string)
	gjson.ParseBytes(body).ForEach(func(_, page gjson.Result) bool {
		if icon := page.Get("faviconUrl").String(); icon != "" {
			icons[target.ID(page.Get("id").String())] = icon
		}
		return true
	})
	return icons, nil
}

// jsonListURL maps a DevTools http or websocket address to its /json/list endpoint.
func jsonListURL(devtoolsURL string) (string, error) {
	u, err := url.Parse(devtoolsURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid devtools url %q", devtoolsURL)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	return u.Scheme + "://" + u.Host + "/json/list", nil
}

func (c *ChromeSource) listTargets(ctx context.Context) ([]*target.Info, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, c.URL)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	infos, err := chromedp.Targets(browserCtx)
	if err != nil {
		return nil, err
	}
	log.Debugf("chrome reported %d target(s)", len(infos))
	return infos, nil
}
