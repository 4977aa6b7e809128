package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"livechat/internal/app/chatroom"
	"livechat/internal/app/db"
	"livechat/internal/app/eventbus"
	"livechat/internal/app/gateway"
	"livechat/internal/app/presence"
	"livechat/internal/app/storage"
	"livechat/internal/app/typing"
	"livechat/internal/app/user"
	"livechat/internal/configs"
	"livechat/internal/pkg/auth"
	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/limiter"
	"livechat/internal/pkg/logx"
)

func TestMain(m *testing.M) {
	logx.Silence()
	os.Exit(m.Run())
}

const assetBaseURL = "http://assets.test"

// tokens of the form "user-<id>" are valid for that id.
var testValidator = auth.ValidatorFunc(func(credential string) (auth.Identity, error) {
	raw, ok := strings.CutPrefix(credential, "user-")
	if !ok {
		return auth.Identity{}, auth.ErrInvalidCredential
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return auth.Identity{}, auth.ErrInvalidCredential
	}
	return auth.Identity{UserID: id}, nil
})

type testServer struct {
	url       string
	bus       *eventbus.MemoryBus
	uploadDir string
	users     []user.User
}

func unlimited() *Limiters {
	return &Limiters{
		Create: limiter.NewIPRateLimiter(rate.Inf, 1),
		Join:   limiter.NewIPRateLimiter(rate.Inf, 1),
	}
}

func newTestServer(t *testing.T, limiters *Limiters) *testServer {
	t.Helper()

	store := db.NewMemoryStore()
	seeded, err := db.SeedUsers(context.Background(), store)
	require.NoError(t, err)

	uploadDir := t.TempDir()
	blobs, err := storage.NewDiskStore(uploadDir, assetBaseURL)
	require.NoError(t, err)

	bus := eventbus.NewMemoryBus()
	gw := gateway.New(testValidator, bus)

	deps := &AppDeps{
		Config:    &configs.AppConfig{Environment: "development"},
		Chatrooms: chatroom.NewService(store, blobs, bus),
		Users:     user.NewService(store, blobs),
		Presence:  presence.NewService(presence.NewMemoryStore(), bus),
		Typing:    typing.NewCoordinator(bus),
		Gateway:   gw,
		Validator: testValidator,
		AssetsDir: uploadDir,
	}

	srv := httptest.NewServer(Router(deps, limiters))
	t.Cleanup(func() {
		gw.Shutdown()
		srv.Close()
		_ = bus.Close()
		limiters.Stop()
	})

	return &testServer{url: srv.URL, bus: bus, uploadDir: uploadDir, users: seeded}
}

type envelope struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Fields  map[string]string `json:"fields"`
}

func (s *testServer) do(t *testing.T, method, path string, userID int64, contentType string, body io.Reader) (int, envelope) {
	t.Helper()

	r, err := http.NewRequest(method, s.url+path, body)
	require.NoError(t, err)
	if userID > 0 {
		r.Header.Set("Authorization", "Bearer user-"+strconv.FormatInt(userID, 10))
	}
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}

	res, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	defer res.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	return res.StatusCode, env
}

func (s *testServer) postJSON(t *testing.T, path string, userID int64, body string) (int, envelope) {
	t.Helper()
	return s.do(t, http.MethodPost, path, userID, "application/json", strings.NewReader(body))
}

func (s *testServer) get(t *testing.T, path string, userID int64) (int, envelope) {
	t.Helper()
	return s.do(t, http.MethodGet, path, userID, "", nil)
}

type formFile struct {
	field, name, contentType, body string
}

func multipartBody(t *testing.T, fields map[string]string, file *formFile) (string, io.Reader) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+file.field+`"; filename="`+file.name+`"`)
		h.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(file.body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), &buf
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func chatroomPath(id int64, suffix string) string {
	return "/api/chatrooms/" + strconv.FormatInt(id, 10) + suffix
}

func (s *testServer) createChatroom(t *testing.T, name string, userID int64) chatroom.Chatroom {
	t.Helper()

	status, env := s.postJSON(t, "/api/chatrooms", userID, `{"name":"`+name+`"}`)
	require.Equal(t, http.StatusOK, status, env.Message)
	return decode[chatroom.Chatroom](t, env)
}

// --- WebSocket client ---

type wsClient struct {
	conn *websocket.Conn
}

func (s *testServer) dialWS(t *testing.T, userID int64) *wsClient {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.url, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &wsClient{conn: conn}
	init, _ := json.Marshal(map[string]string{"token": "user-" + strconv.FormatInt(userID, 10)})
	c.send(t, gateway.Frame{Type: gateway.FrameConnectionInit, Payload: init})
	require.Equal(t, gateway.FrameConnectionAck, c.read(t).Type)
	return c
}

func (c *wsClient) send(t *testing.T, frame gateway.Frame) {
	t.Helper()
	require.NoError(t, c.conn.WriteJSON(frame))
}

func (c *wsClient) read(t *testing.T) gateway.Frame {
	t.Helper()

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame gateway.Frame
	require.NoError(t, c.conn.ReadJSON(&frame))
	return frame
}

func (c *wsClient) subscribe(t *testing.T, s *testServer, id string, op gateway.Operation, class eventbus.EventClass, chatroomID int64) {
	t.Helper()

	payload, _ := json.Marshal(gateway.SubscribePayload{Operation: op, Args: gateway.Args{ChatroomID: chatroomID}})
	topic := eventbus.Topic(class, chatroomID)
	before := s.bus.SubscriberCount(topic)

	c.send(t, gateway.Frame{ID: id, Type: gateway.FrameSubscribe, Payload: payload})
	require.Eventually(t, func() bool { return s.bus.SubscriberCount(topic) > before }, time.Second, 5*time.Millisecond)
}

func nextPayload[T any](t *testing.T, c *wsClient, id string) T {
	t.Helper()

	frame := c.read(t)
	require.Equal(t, gateway.FrameNext, frame.Type, string(frame.Payload))
	require.Equal(t, id, frame.ID)

	var v T
	require.NoError(t, json.Unmarshal(frame.Payload, &v))
	return v
}

func userIDs(users []user.User) []int64 {
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

// --- tests ---

func TestHealth(t *testing.T) {
	s := newTestServer(t, unlimited())

	status, env := s.get(t, "/health", 0)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]string{"status": "ok", "service": "livechat"}, decode[map[string]string](t, env))
}

func TestAPI_RequiresBearerCredential(t *testing.T) {
	s := newTestServer(t, unlimited())

	status, env := s.get(t, "/api/user/profile", 0)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, errs.ErrUnauthorized, env.Code)

	r, err := http.NewRequest(http.MethodGet, s.url+"/api/user/profile", nil)
	require.NoError(t, err)
	r.Header.Set("Authorization", "Bearer forged")
	res, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestChatroomLifecycleScenario(t *testing.T) {
	s := newTestServer(t, unlimited())
	ada, alan := s.users[0], s.users[1]

	general := s.createChatroom(t, "general", ada.ID)
	assert.Equal(t, "general", general.Name)
	assert.Equal(t, []int64{ada.ID}, userIDs(general.Users))

	status, env := s.postJSON(t, "/api/chatrooms", alan.ID, `{"name":"general"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, errs.ErrChatroomNameExists, env.Code)
	assert.Contains(t, env.Fields, "name")

	_, env = s.get(t, chatroomPath(general.ID, "/users"), ada.ID)
	assert.Equal(t, []int64{ada.ID}, userIDs(decode[[]user.User](t, env)))

	watcher := s.dialWS(t, s.users[2].ID)
	watcher.subscribe(t, s, "msgs", gateway.OpNewMessage, eventbus.ClassNewMessage, general.ID)
	watcher.subscribe(t, s, "live", gateway.OpLiveUserInChatroom, eventbus.ClassLiveUsers, general.ID)

	status, env = s.postJSON(t, chatroomPath(general.ID, "/messages"), ada.ID, `{"content":"hi"}`)
	require.Equal(t, http.StatusOK, status, env.Message)
	sent := decode[chatroom.Message](t, env)
	assert.Equal(t, general.ID, sent.ChatroomID)
	assert.Equal(t, ada.ID, sent.User.ID)

	pushed := nextPayload[chatroom.Message](t, watcher, "msgs")
	assert.Equal(t, "hi", pushed.Content)
	assert.Equal(t, ada.ID, pushed.User.ID)
	assert.Equal(t, ada.Fullname, pushed.User.Fullname)

	_, env = s.get(t, chatroomPath(general.ID, "/messages"), ada.ID)
	history := decode[[]chatroom.Message](t, env)
	require.Len(t, history, 1)
	assert.Equal(t, sent.ID, history[0].ID)

	status, env = s.postJSON(t, chatroomPath(general.ID, "/enter"), alan.ID, "")
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Equal(t, []int64{alan.ID}, userIDs(decode[[]user.User](t, env)))
	assert.Equal(t, []int64{alan.ID}, userIDs(nextPayload[[]user.User](t, watcher, "live")))

	_, env = s.get(t, chatroomPath(general.ID, "/live-users"), ada.ID)
	assert.Equal(t, []int64{alan.ID}, userIDs(decode[[]user.User](t, env)))

	status, _ = s.postJSON(t, chatroomPath(general.ID, "/leave"), alan.ID, "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, nextPayload[[]user.User](t, watcher, "live"))
}

func TestSendMessage_OtherChatroomIsNotDelivered(t *testing.T) {
	s := newTestServer(t, unlimited())
	ada := s.users[0]

	first := s.createChatroom(t, "first", ada.ID)
	second := s.createChatroom(t, "second", ada.ID)

	watcher := s.dialWS(t, ada.ID)
	watcher.subscribe(t, s, "first", gateway.OpNewMessage, eventbus.ClassNewMessage, first.ID)

	status, _ := s.postJSON(t, chatroomPath(second.ID, "/messages"), ada.ID, `{"content":"elsewhere"}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.postJSON(t, chatroomPath(first.ID, "/messages"), ada.ID, `{"content":"here"}`)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "here", nextPayload[chatroom.Message](t, watcher, "first").Content)
}

func TestAddUsers(t *testing.T) {
	s := newTestServer(t, unlimited())
	ada, alan, grace := s.users[0], s.users[1], s.users[2]
	room := s.createChatroom(t, "team", ada.ID)

	body := `{"userIds":[` + strconv.FormatInt(alan.ID, 10) + `,` + strconv.FormatInt(grace.ID, 10) + `]}`
	status, env := s.postJSON(t, chatroomPath(room.ID, "/users"), ada.ID, body)
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.ElementsMatch(t, []int64{ada.ID, alan.ID, grace.ID}, userIDs(decode[chatroom.Chatroom](t, env).Users))

	_, env = s.get(t, "/api/users/"+strconv.FormatInt(grace.ID, 10)+"/chatrooms", grace.ID)
	rooms := decode[[]chatroom.Chatroom](t, env)
	require.Len(t, rooms, 1)
	assert.Equal(t, room.ID, rooms[0].ID)
}

func TestAddUsers_MissingChatroomIsNotFound(t *testing.T) {
	s := newTestServer(t, unlimited())
	ada, alan := s.users[0], s.users[1]

	status, env := s.postJSON(t, chatroomPath(999, "/users"), ada.ID, `{"userIds":[`+strconv.FormatInt(alan.ID, 10)+`]}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, errs.ErrChatroomNotFound, env.Code)

	_, env = s.get(t, "/api/users/"+strconv.FormatInt(alan.ID, 10)+"/chatrooms", alan.ID)
	assert.Empty(t, decode[[]chatroom.Chatroom](t, env))
}

func TestDeleteChatroom(t *testing.T) {
	s := newTestServer(t, unlimited())
	ada := s.users[0]
	room := s.createChatroom(t, "temp", ada.ID)

	status, _ := s.do(t, http.MethodDelete, chatroomPath(room.ID, ""), ada.ID, "", nil)
	require.Equal(t, http.StatusOK, status)

	status, env := s.get(t, chatroomPath(room.ID, "/messages"), ada.ID)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, errs.ErrChatroomNotFound, env.Code)

	status, _ = s.do(t, http.MethodDelete, chatroomPath(room.ID, ""), ada.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestInvalidPathID(t *testing.T) {
	s := newTestServer(t, unlimited())

	status, env := s.get(t, "/api/chatrooms/abc/messages", s.users[0].ID)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errs.ErrInvalidParams, env.Code)
	assert.Contains(t, env.Fields, "chatroomID")
}

func TestSendMessage_MultipartImage(t *testing.T) {
	s := newTestServer(t, unlimited())
	ada := s.users[0]
	room := s.createChatroom(t, "photos", ada.ID)

	contentType, body := multipartBody(t, map[string]string{"content": "look"},
		&formFile{field: "image", name: "cat.png", contentType: "image/png", body: "png-bytes"})
	status, env := s.do(t, http.MethodPost, chatroomPath(room.ID, "/messages"), ada.ID, contentType, body)
	require.Equal(t, http.StatusOK, status, env.Message)

	msg := decode[chatroom.Message](t, env)
	assert.Equal(t, "look", msg.Content)
	require.True(t, strings.HasPrefix(msg.ImageURL, assetBaseURL+"/"), msg.ImageURL)

	res, err := http.Get(s.url + "/assets/" + strings.TrimPrefix(msg.ImageURL, assetBaseURL+"/"))
	require.NoError(t, err)
	defer res.Body.Close()
	served, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "png-bytes", string(served))
}

func TestUnsupportedImageIsRejectedBeforeWrite(t *testing.T) {
	s := newTestServer(t, unlimited())
	ada := s.users[0]
	room := s.createChatroom(t, "docs", ada.ID)

	pdf := &formFile{name: "doc.pdf", contentType: "application/pdf", body: "%PDF-1.4"}

	pdf.field = "image"
	contentType, body := multipartBody(t, map[string]string{"content": "report"}, pdf)
	status, env := s.do(t, http.MethodPost, chatroomPath(room.ID, "/messages"), ada.ID, contentType, body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, errs.ErrUnsupportedImageType, env.Code)

	pdf.field = "file"
	contentType, body = multipartBody(t, map[string]string{"fullname": "Ada"}, pdf)
	status, env = s.do(t, http.MethodPost, "/api/user/profile", ada.ID, contentType, body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, errs.ErrUnsupportedImageType, env.Code)

	entries, err := os.ReadDir(s.uploadDir + "/" + storage.ImagePrefix)
	if err == nil {
		assert.Empty(t, entries)
	} else {
		assert.True(t, os.IsNotExist(err))
	}

	_, env = s.get(t, chatroomPath(room.ID, "/messages"), ada.ID)
	assert.Empty(t, decode[[]chatroom.Message](t, env))
}

func TestSendMessage_Validation(t *testing.T) {
	s := newTestServer(t, unlimited())
	ada := s.users[0]
	room := s.createChatroom(t, "rules", ada.ID)

	status, env := s.postJSON(t, chatroomPath(room.ID, "/messages"), ada.ID, `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errs.ErrMessageEmpty, env.Code)

	status, env = s.postJSON(t, chatroomPath(room.ID, "/messages"), ada.ID, `{"content":"x","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errs.ErrInvalidJSONFormat, env.Code)

	status, env = s.do(t, http.MethodPost, chatroomPath(room.ID, "/messages"), ada.ID, "text/plain", strings.NewReader("hi"))
	assert.Equal(t, http.StatusUnsupportedMediaType, status)
	assert.Equal(t, errs.ErrUnsupportedMediaType, env.Code)
}

func TestTyping_SelfFilter(t *testing.T) {
	s := newTestServer(t, unlimited())
	ada, alan := s.users[0], s.users[1]
	room := s.createChatroom(t, "typing", ada.ID)

	watcher := s.dialWS(t, ada.ID)
	watcher.subscribe(t, s, "typing", gateway.OpUserStartedTyping, eventbus.ClassUserStartedTyping, room.ID)

	status, _ := s.postJSON(t, chatroomPath(room.ID, "/typing/start"), ada.ID, "")
	require.Equal(t, http.StatusOK, status)
	status, _ = s.postJSON(t, chatroomPath(room.ID, "/typing/start"), alan.ID, "")
	require.Equal(t, http.StatusOK, status)

	typist := nextPayload[user.User](t, watcher, "typing")
	assert.Equal(t, alan.ID, typist.ID)
}

func TestUserProfileAndSearch(t *testing.T) {
	s := newTestServer(t, unlimited())
	ada := s.users[0]

	_, env := s.get(t, "/api/user/profile", ada.ID)
	assert.Equal(t, ada.Fullname, decode[user.User](t, env).Fullname)

	contentType, body := multipartBody(t, map[string]string{"fullname": "Ada King"},
		&formFile{field: "file", name: "me.gif", contentType: "image/gif", body: "gif"})
	status, env := s.do(t, http.MethodPost, "/api/user/profile", ada.ID, contentType, body)
	require.Equal(t, http.StatusOK, status, env.Message)
	updated := decode[user.User](t, env)
	assert.Equal(t, "Ada King", updated.Fullname)
	assert.True(t, strings.HasPrefix(updated.Avatar, assetBaseURL+"/"))

	status, _ = s.postJSON(t, "/api/user/profile", ada.ID, `{"fullname":"x"}`)
	assert.Equal(t, http.StatusUnsupportedMediaType, status)

	_, env = s.get(t, "/api/users/search?fullname=a", ada.ID)
	found := decode[[]user.User](t, env)
	assert.NotContains(t, userIDs(found), ada.ID)
	assert.ElementsMatch(t, []int64{s.users[1].ID, s.users[2].ID}, userIDs(found))
}

func TestCreateChatroom_RateLimited(t *testing.T) {
	s := newTestServer(t, NewLimiters())
	ada := s.users[0]

	for i := 0; i < CreateBurst; i++ {
		s.createChatroom(t, "room-"+strconv.Itoa(i), ada.ID)
	}

	status, env := s.postJSON(t, "/api/chatrooms", ada.ID, `{"name":"one-too-many"}`)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, errs.ErrRateLimitExceeded, env.Code)
}
