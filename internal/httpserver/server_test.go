package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/robalobadob/hiddenpicture/internal/config"
	"github.com/robalobadob/hiddenpicture/internal/db"
	"github.com/robalobadob/hiddenpicture/internal/game"
	"github.com/robalobadob/hiddenpicture/internal/notify"
	"github.com/robalobadob/hiddenpicture/internal/session"
	"github.com/robalobadob/hiddenpicture/internal/store"
	"github.com/robalobadob/hiddenpicture/internal/users"
)

type testEnv struct {
	ts     *httptest.Server
	client *http.Client
	reg    *session.Registry
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.Default()
	opts := session.Options{
		CanvasWidth:  cfg.Canvas.Width,
		CanvasHeight: cfg.Canvas.Height,
		Params: game.Params{
			HitRadius:   cfg.Game.HitRadius,
			Padding:     cfg.Game.Padding,
			PreviewSize: cfg.Game.PreviewSize,
		},
		RingWidth: cfg.Game.RingWidth,
	}
	reg := session.NewRegistry(store.NewSQLiteStore(database), opts)

	srv := New(Deps{
		Config:   cfg,
		Registry: reg,
		Users:    users.NewStore(database),
		Hub:      notify.NewHub(),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &testEnv{ts: ts, client: &http.Client{Jar: jar}, reg: reg}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// upload posts data as the "image" form file. An empty ctype keeps the
// multipart default (application/octet-stream).
func (e *testEnv) upload(t *testing.T, data []byte, ctype string) (*http.Response, gameRes) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	var part io.Writer
	var err error
	if ctype == "" {
		part, err = mw.CreateFormFile("image", "picture.png")
	} else {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="picture"`)
		h.Set("Content-Type", ctype)
		part, err = mw.CreatePart(h)
	}
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, e.ts.URL+"/game/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(t, req)
}

func (e *testEnv) postJSON(t *testing.T, path string, v any) (*http.Response, gameRes) {
	t.Helper()
	b, _ := json.Marshal(v)
	req, _ := http.NewRequest(http.MethodPost, e.ts.URL+path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return e.do(t, req)
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, gameRes) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, e.ts.URL+path, nil)
	return e.do(t, req)
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, gameRes) {
	t.Helper()
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	var out gameRes
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

// cookie returns the value of the named cookie held by the client's jar.
func (e *testEnv) cookie(t *testing.T, name string) string {
	t.Helper()
	u, _ := url.Parse(e.ts.URL)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// points reads the hidden point positions straight from the registry.
func (e *testEnv) points(t *testing.T, player string) []game.Point {
	t.Helper()
	sess, err := e.reg.Open(context.Background(), player)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec, err := sess.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return rec.Points
}

func TestHealth(t *testing.T) {
	e := setupServer(t)
	resp, err := e.client.Get(e.ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestNotFoundIsJSON(t *testing.T) {
	e := setupServer(t)
	resp, _ := e.get(t, "/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGameFlow(t *testing.T) {
	e := setupServer(t)

	resp, res := e.upload(t, pngBytes(t, 400, 300), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d (%s)", resp.StatusCode, res.Error)
	}
	if !res.Game.Loaded || res.Status.Level != session.LevelSuccess {
		t.Fatalf("upload result = %+v", res)
	}
	if r := res.Game.Region; r == nil || math.Abs(r.Width-800) > 1e-9 || math.Abs(r.Height-600) > 1e-9 {
		t.Errorf("region = %+v, want full 800x600 canvas", r)
	}

	resp, res = e.postJSON(t, "/game/points", pointsReq{Count: 3})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("points status = %d (%s)", resp.StatusCode, res.Error)
	}
	if res.Game.Total != 3 || res.Game.Found != 0 {
		t.Fatalf("total/found = %d/%d", res.Game.Total, res.Game.Found)
	}
	for _, p := range res.Game.Points {
		if !strings.HasPrefix(p.Preview, "data:image/png;base64,") || p.Found {
			t.Errorf("point %d = %+v", p.Index, p)
		}
	}

	player := anonPlayer(e.cookie(t, anonCookieName))
	pts := e.points(t, player)
	if len(pts) != 3 {
		t.Fatalf("registry points = %d", len(pts))
	}

	// miss
	_, res = e.postJSON(t, "/game/click", clickReq{X: 1, Y: 1})
	if res.Click == nil || res.Click.Hit || res.Status.Level != session.LevelError {
		t.Errorf("miss result = %+v", res)
	}

	// hit through a half-size display
	_, res = e.postJSON(t, "/game/click", clickReq{
		X: pts[0].X / 2, Y: pts[0].Y / 2, DisplayWidth: 400, DisplayHeight: 300,
	})
	if res.Click == nil || !res.Click.Hit || res.Game.Found < 1 {
		t.Fatalf("hit result = %+v", res.Click)
	}

	for _, p := range pts {
		_, res = e.postJSON(t, "/game/click", clickReq{X: p.X, Y: p.Y})
	}
	if res.Game.Found != 3 {
		t.Errorf("found = %d, want 3", res.Game.Found)
	}

	resp, err := e.client.Get(e.ts.URL + "/game/canvas.png")
	if err != nil {
		t.Fatalf("GET canvas: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("canvas Content-Type = %q", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode canvas: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 800 || b.Dy() != 600 {
		t.Errorf("canvas size = %v", b)
	}

	req, _ := http.NewRequest(http.MethodDelete, e.ts.URL+"/game", nil)
	resp, res = e.do(t, req)
	if resp.StatusCode != http.StatusOK || res.Game.Loaded || res.Game.Total != 0 {
		t.Errorf("reset = %d %+v", resp.StatusCode, res.Game)
	}
}

func TestGameErrors(t *testing.T) {
	e := setupServer(t)

	resp, res := e.postJSON(t, "/game/points", pointsReq{})
	if resp.StatusCode != http.StatusConflict || res.Status.Level != session.LevelWarning {
		t.Errorf("generate before upload = %d %+v", resp.StatusCode, res.Status)
	}

	resp, _ = e.upload(t, []byte("definitely not an image"), "")
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("text upload = %d, want 415", resp.StatusCode)
	}

	resp, res = e.upload(t, []byte("definitely not an image"), "image/png")
	if resp.StatusCode != http.StatusBadRequest || res.Status.Level != session.LevelError {
		t.Errorf("corrupt png = %d %+v", resp.StatusCode, res.Status)
	}
	if res.Game.Loaded {
		t.Error("failed decode marked the game loaded")
	}

	// 1600x40 letterboxes to 800x20, too thin for the safe margin
	if resp, _ := e.upload(t, pngBytes(t, 1600, 40), ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("wide upload = %d", resp.StatusCode)
	}
	resp, res = e.postJSON(t, "/game/points", pointsReq{Count: 5})
	if resp.StatusCode != http.StatusUnprocessableEntity || res.Game.Total != 0 {
		t.Errorf("too small = %d total=%d", resp.StatusCode, res.Game.Total)
	}

	req, _ := http.NewRequest(http.MethodPost, e.ts.URL+"/game/click", strings.NewReader("{"))
	if resp, _ := e.do(t, req); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad json click = %d", resp.StatusCode)
	}
}

func TestDefaultPointCount(t *testing.T) {
	e := setupServer(t)
	e.upload(t, pngBytes(t, 400, 300), "")

	req, _ := http.NewRequest(http.MethodPost, e.ts.URL+"/game/points", nil)
	resp, res := e.do(t, req)
	if resp.StatusCode != http.StatusOK || res.Game.Total != game.DefaultPoints {
		t.Errorf("no body = %d total=%d", resp.StatusCode, res.Game.Total)
	}

	_, res = e.postJSON(t, "/game/points", pointsReq{Count: 50})
	if res.Game.Total != game.MaxPoints {
		t.Errorf("count 50 total = %d, want %d", res.Game.Total, game.MaxPoints)
	}

	resp, res = e.postJSON(t, "/game/points", map[string]any{"count": 3.5})
	if resp.StatusCode != http.StatusOK || res.Game.Total != 3 {
		t.Errorf("count 3.5 = %d total=%d, want 200 total=3", resp.StatusCode, res.Game.Total)
	}
}

func TestSignupClaimsAnonymousGame(t *testing.T) {
	e := setupServer(t)

	if resp, _ := e.get(t, "/auth/me"); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous /auth/me = %d", resp.StatusCode)
	}

	e.upload(t, pngBytes(t, 400, 300), "")
	e.postJSON(t, "/game/points", pointsReq{Count: 4})

	resp, _ := e.postJSON(t, "/auth/signup", credentialsReq{Username: "dana", Password: "password123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signup = %d", resp.StatusCode)
	}

	_, res := e.get(t, "/game")
	if !res.Game.Loaded || res.Game.Total != 4 {
		t.Errorf("claimed game = loaded:%v total:%d", res.Game.Loaded, res.Game.Total)
	}

	e.postJSON(t, "/game/points", pointsReq{Count: 2})

	resp, err := e.client.Get(e.ts.URL + "/stats/me")
	if err != nil {
		t.Fatalf("GET /stats/me: %v", err)
	}
	defer resp.Body.Close()
	var stats struct {
		RoundsStarted int `json:"roundsStarted"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&stats)
	if resp.StatusCode != http.StatusOK || stats.RoundsStarted != 1 {
		t.Errorf("stats = %d %+v", resp.StatusCode, stats)
	}

	if resp, _ := e.postJSON(t, "/auth/signup", credentialsReq{Username: "DANA", Password: "password123"}); resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate signup = %d", resp.StatusCode)
	}
	if resp, _ := e.postJSON(t, "/auth/login", credentialsReq{Username: "dana", Password: "wrong-password"}); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login = %d", resp.StatusCode)
	}
}

func TestEventsStream(t *testing.T) {
	e := setupServer(t)
	e.upload(t, pngBytes(t, 400, 300), "")

	u, _ := url.Parse(e.ts.URL)
	header := http.Header{}
	for _, c := range e.client.Jar.Cookies(u) {
		header.Add("Cookie", c.String())
	}
	wsURL := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/game/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	// the current status arrives first, once the stream is subscribed
	var ev statusEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if ev.Type != "status" || ev.Status.Level != session.LevelSuccess {
		t.Errorf("initial event = %+v", ev)
	}

	e.postJSON(t, "/game/points", pointsReq{Count: 2})
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read generated: %v", err)
	}
	if ev.Status.Level != session.LevelInfo || !strings.Contains(ev.Status.Text, "2 hidden points") {
		t.Errorf("generated event = %+v", ev)
	}
}
