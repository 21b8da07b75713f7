package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AutoNews/internal/config"
	"AutoNews/internal/domain"
	"AutoNews/internal/publish"
)

func TestRenderHTML_Caption(t *testing.T) {
	caption := publish.FormatCaption(domain.Candidate{
		Title:  "Lada <Iskra> & Co",
		Lead:   "Price *drops* 5.5%",
		Source: "kolesa.ru",
		Link:   "https://www.kolesa.ru/news/a_b?x=1&y=2",
	})

	want := "<b>Lada &lt;Iskra&gt; &amp; Co</b>\n\n" +
		"Price *drops* 5.5%\n\n" +
		`Source: <a href="https://www.kolesa.ru/news/a_b?x=1&amp;y=2">kolesa.ru</a>`
	assert.Equal(t, want, RenderHTML(caption))
}

func TestRenderHTML_MultiLineLead(t *testing.T) {
	caption := publish.FormatCaption(domain.Candidate{
		Title:  "Recall",
		Lead:   "Sales start in May, and more!\nsecond line\n---",
		Source: "autostat.ru",
		Link:   "https://www.autostat.ru/news/1/",
	})

	want := "<b>Recall</b>\n\n" +
		"Sales start in May, and more!\nsecond line\n---\n\n" +
		`Source: <a href="https://www.autostat.ru/news/1/">autostat.ru</a>`
	assert.Equal(t, want, RenderHTML(caption))
}

func TestRenderHTML_Italic(t *testing.T) {
	assert.Equal(t, "<b>❌ Publish failed</b>\n\ntimeout\n\n<i>New SUV</i>",
		RenderHTML("**❌ Publish failed**\n\ntimeout\n\n_New SUV_"))
}

type recordedCall struct {
	method string
	form   map[string]string
}

type fakeAPI struct {
	mu       sync.Mutex
	calls    []recordedCall
	response string
	imageCT  string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/img/") {
			assert.Equal(t, http.MethodHead, r.Method)
			f.mu.Lock()
			w.Header().Set("Content-Type", f.imageCT)
			f.mu.Unlock()
			return
		}

		require.NoError(t, r.ParseForm())
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		f.mu.Lock()
		f.calls = append(f.calls, recordedCall{method: r.URL.Path, form: form})
		f.mu.Unlock()

		resp := f.response
		if resp == "" {
			resp = `{"ok":true,"result":{}}`
		}
		_, _ = w.Write([]byte(resp))
	})
}

func newTestBot(t *testing.T, api *fakeAPI) (*Bot, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(api.handler(t))
	t.Cleanup(ts.Close)
	return NewBot(config.TelegramConfig{BotToken: "123:abc", APIBase: ts.URL}, nil), ts
}

func TestChannelPublisher_PublishPhoto(t *testing.T) {
	api := &fakeAPI{}
	bot, ts := newTestBot(t, api)
	pub := NewChannelPublisher(bot, "@autonews")

	require.NoError(t, pub.PublishPhoto(context.Background(), ts.URL+"/img/1.jpg", "**Title**\n\nLead"))

	require.Len(t, api.calls, 1)
	call := api.calls[0]
	assert.Equal(t, "/bot123:abc/sendPhoto", call.method)
	assert.Equal(t, "@autonews", call.form["chat_id"])
	assert.Equal(t, ts.URL+"/img/1.jpg", call.form["photo"])
	assert.Equal(t, "<b>Title</b>\n\nLead", call.form["caption"])
	assert.Equal(t, "HTML", call.form["parse_mode"])
}

func TestChannelPublisher_PublishTextError(t *testing.T) {
	api := &fakeAPI{response: `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`}
	bot, _ := newTestBot(t, api)

	err := NewChannelPublisher(bot, "@missing").PublishText(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, "telegram error: 400 Bad Request: chat not found", err.Error())
	assert.Equal(t, "/bot123:abc/sendMessage", api.calls[0].method)
	assert.Equal(t, "hello", api.calls[0].form["text"])
}

func TestBot_Misconfigured(t *testing.T) {
	bot := NewBot(config.TelegramConfig{}, nil)
	assert.Error(t, bot.SendMessage(context.Background(), "1", "x"))
}

func TestBot_ImageUsable(t *testing.T) {
	api := &fakeAPI{imageCT: "image/jpeg"}
	bot, ts := newTestBot(t, api)

	assert.True(t, bot.ImageUsable(context.Background(), ts.URL+"/img/ok.jpg"))
	assert.False(t, bot.ImageUsable(context.Background(), ""))
	assert.False(t, bot.ImageUsable(context.Background(), "http://127.0.0.1:1/unreachable.jpg"))

	api.mu.Lock()
	api.imageCT = "text/html"
	api.mu.Unlock()
	assert.False(t, bot.ImageUsable(context.Background(), ts.URL+"/img/page"))
}

func TestAdminAlerter(t *testing.T) {
	api := &fakeAPI{imageCT: "image/png"}
	bot, ts := newTestBot(t, api)
	alerter := NewAdminAlerter(bot, "42", nil)

	require.NoError(t, alerter.Alert(context.Background(), "with image", ts.URL+"/img/a.png"))
	require.NoError(t, alerter.Alert(context.Background(), "plain", ""))

	require.Len(t, api.calls, 2)
	assert.Equal(t, "/bot123:abc/sendPhoto", api.calls[0].method)
	assert.Equal(t, "42", api.calls[0].form["chat_id"])
	assert.Equal(t, "/bot123:abc/sendMessage", api.calls[1].method)
	assert.Equal(t, "plain", api.calls[1].form["text"])
}
