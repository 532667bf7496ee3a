package adapters

import (
	"context"
	"testing"
	"time"

	"grocery-helpers/internal/types"

	"github.com/sirupsen/logrus"
)

type sentKeys struct {
	selector string
	keys     string
}

// fakeSession serves scripted HTML per URL. Each URL may have several
// renderings, returned in order on successive HTML calls (the last one
// repeats), which lets tests exercise polling. Click handlers can move the
// session to another URL to script pagination.
type fakeSession struct {
	pages   map[string][]string
	reads   map[string]int
	current string
	onClick map[string]func(f *fakeSession)

	navigations []string
	clicks      []string
	selectAlls  []string
	keys        []sentKeys
	evals       []string
	released    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		pages:   make(map[string][]string),
		reads:   make(map[string]int),
		onClick: make(map[string]func(f *fakeSession)),
	}
}

func (f *fakeSession) show(url string, renderings ...string) {
	f.pages[url] = renderings
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	f.navigations = append(f.navigations, url)
	f.current = url
	return nil
}

func (f *fakeSession) CurrentURL(ctx context.Context) (string, error) {
	return f.current, nil
}

func (f *fakeSession) HTML(ctx context.Context) (string, error) {
	renderings := f.pages[f.current]
	if len(renderings) == 0 {
		return "<html><head></head><body></body></html>", nil
	}
	i := f.reads[f.current]
	f.reads[f.current]++
	if i >= len(renderings) {
		i = len(renderings) - 1
	}
	return renderings[i], nil
}

func (f *fakeSession) Click(ctx context.Context, selector string) error {
	f.clicks = append(f.clicks, selector)
	if handler := f.onClick[selector]; handler != nil {
		handler(f)
	}
	return nil
}

func (f *fakeSession) SelectAll(ctx context.Context, selector string) error {
	f.selectAlls = append(f.selectAlls, selector)
	return nil
}

func (f *fakeSession) SendKeys(ctx context.Context, selector string, keys string) error {
	f.keys = append(f.keys, sentKeys{selector: selector, keys: keys})
	return nil
}

func (f *fakeSession) Evaluate(ctx context.Context, script string, res interface{}) error {
	f.evals = append(f.evals, script)
	if clicked, ok := res.(*bool); ok {
		*clicked = true
	}
	return nil
}

func (f *fakeSession) Release() error {
	f.released++
	return nil
}

func testConfig(t *testing.T) *types.Config {
	config := types.DefaultConfig()
	config.PollTimeout = 200 * time.Millisecond
	config.PollInterval = time.Millisecond
	config.SettleDelay = 0
	config.RequestDelay = time.Millisecond
	config.DataDir = t.TempDir()
	return config
}

// acquireCounter hands out session and counts how often a session was requested
type acquireCounter struct {
	session *fakeSession
	calls   int
}

func (a *acquireCounter) acquire(ctx context.Context) (types.Session, error) {
	a.calls++
	return a.session, nil
}

func newTestLoblaw(t *testing.T, session *fakeSession) (*LoblawAdapter, *acquireCounter) {
	adapter := NewLoblawAdapter("Real Canadian Superstore", "https://www.realcanadiansuperstore.ca", testConfig(t), logrus.New())
	counter := &acquireCounter{session: session}
	adapter.SetAcquireFunc(counter.acquire)
	t.Cleanup(adapter.Close)
	return adapter, counter
}

func newTestWalmart(t *testing.T, session *fakeSession) (*WalmartAdapter, *acquireCounter) {
	adapter := NewWalmartAdapter(testConfig(t), logrus.New())
	counter := &acquireCounter{session: session}
	adapter.SetAcquireFunc(counter.acquire)
	t.Cleanup(adapter.Close)
	return adapter, counter
}

func page(body string) string {
	return "<html><head></head><body>" + body + "</body></html>"
}
