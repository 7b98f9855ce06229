package bot

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packdb/packdb/core/telegram/state"
	"github.com/packdb/packdb/internal/entry"
	"github.com/packdb/packdb/internal/limits"
	"github.com/packdb/packdb/internal/storage"

	tele "gopkg.in/telebot.v4"
)

type sentItem struct {
	to   tele.Recipient
	what interface{}
}

type fakeTransport struct {
	sets    map[string]*tele.StickerSet
	files   map[string][]byte
	sent    []sentItem
	deleted []string
	sendErr error
	nextID  int
}

func (f *fakeTransport) StickerSet(name string) (*tele.StickerSet, error) {
	set, ok := f.sets[name]
	if !ok {
		return nil, &tele.Error{Code: 400, Description: "Bad Request: STICKERSET_INVALID"}
	}
	return set, nil
}

func (f *fakeTransport) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, sentItem{to: to, what: what})
	return &tele.Message{ID: f.nextID}, nil
}

func (f *fakeTransport) Delete(msg tele.Editable) error {
	id, _ := msg.MessageSig()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeTransport) File(file *tele.File) (io.ReadCloser, error) {
	raw, ok := f.files[file.FileID]
	if !ok {
		return nil, &tele.Error{Code: 400, Description: "Bad Request: file not found"}
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

// testContext fakes the slice of tele.Context the flows touch. Anything
// else panics via the nil embedded interface, which is exactly what a test
// reaching beyond the faked surface deserves.
type testContext struct {
	tele.Context

	user    *tele.User
	chat    *tele.Chat
	message *tele.Message
	cb      *tele.Callback
	query   *tele.Query
	kv      map[string]interface{}

	replies []string
	options []*tele.SendOptions
	answers []*tele.QueryResponse
}

func newTestContext(userID int64) *testContext {
	return &testContext{
		user: &tele.User{ID: userID},
		chat: &tele.Chat{ID: userID},
		kv:   make(map[string]interface{}),
	}
}

func (c *testContext) Update() tele.Update      { return tele.Update{ID: 1} }
func (c *testContext) Sender() *tele.User       { return c.user }
func (c *testContext) Chat() *tele.Chat         { return c.chat }
func (c *testContext) Message() *tele.Message   { return c.message }
func (c *testContext) Callback() *tele.Callback { return c.cb }
func (c *testContext) Query() *tele.Query       { return c.query }

func (c *testContext) Get(key string) interface{}      { return c.kv[key] }
func (c *testContext) Set(key string, val interface{}) { c.kv[key] = val }

func (c *testContext) Text() string {
	if c.message != nil {
		return c.message.Text
	}
	return ""
}

func (c *testContext) Send(what interface{}, opts ...interface{}) error {
	if s, ok := what.(string); ok {
		c.replies = append(c.replies, s)
	}
	var so *tele.SendOptions
	if len(opts) > 0 {
		so, _ = opts[0].(*tele.SendOptions)
	}
	c.options = append(c.options, so)
	return nil
}

func (c *testContext) Respond(_ ...*tele.CallbackResponse) error { return nil }

func (c *testContext) Answer(resp *tele.QueryResponse) error {
	c.answers = append(c.answers, resp)
	return nil
}

func (c *testContext) lastReply(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, c.replies)
	return c.replies[len(c.replies)-1]
}

func newHarness(cfg Config) (*Handlers, *storage.MemStore, *fakeTransport, state.Manager) {
	store := storage.NewMemStore()
	fsm := state.NewMemoryManager()
	tp := &fakeTransport{
		sets:  make(map[string]*tele.StickerSet),
		files: make(map[string][]byte),
	}
	h := New(store, limits.NewGate(store, 0), fsm, cfg)
	h.AttachBot(tp)
	return h, store, tp, fsm
}

func textMsg(s string) *tele.Message {
	return &tele.Message{Text: s}
}

func stickerMsg(fileID string) *tele.Message {
	return &tele.Message{Sticker: &tele.Sticker{File: tele.File{FileID: fileID}}}
}

func callbackTo(action Action, payload string) *tele.Callback {
	data := "\f" + action.Key()
	if payload != "" {
		data += "|" + payload
	}
	return &tele.Callback{Data: data}
}

func seed(t *testing.T, store *storage.MemStore, owner int64, pack string, entries ...entry.Entry) {
	t.Helper()
	_, err := store.InsertMissing(context.Background(), owner, pack, entries)
	require.NoError(t, err)
}

func TestCreateThenAddThenList(t *testing.T) {
	h, store, _, fsm := newHarness(Config{})
	user := int64(7)
	c := newTestContext(user)

	require.NoError(t, h.onCreate(c))
	assert.Equal(t, StateAwaitingName, fsm.GetState(user))

	c.message = textMsg("cats")
	require.NoError(t, h.stateAwaitingName(c))
	assert.Equal(t, StateAwaitingMedia, fsm.GetState(user))

	c.message = stickerMsg("file-1")
	require.NoError(t, h.stateAwaitingMedia(c))
	assert.Contains(t, c.lastReply(t), "Added")

	entries, err := store.ListEntries(context.Background(), user, "cats", storage.MatchExact)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.Entry{Type: entry.TypeMedia, Data: "file-1"}, entries[0])
}

func TestCreateNameValidation(t *testing.T) {
	h, _, _, fsm := newHarness(Config{})
	user := int64(7)
	c := newTestContext(user)

	require.NoError(t, h.onCreate(c))

	c.message = textMsg("Name With Spaces-AND-CAPS-51-characters-long-xxxxxxxxxx")
	require.NoError(t, h.stateAwaitingName(c))
	assert.Equal(t, StateAwaitingName, fsm.GetState(user), "rejected name keeps the flow in place")
	assert.Contains(t, c.lastReply(t), "will not work")

	c.message = textMsg("cats-and-dogs_01")
	require.NoError(t, h.stateAwaitingName(c))
	assert.Equal(t, StateAwaitingMedia, fsm.GetState(user))
	pack, ok := fsm.GetTempString(user, tempPack)
	require.True(t, ok)
	assert.Equal(t, "cats-and-dogs_01", pack)
}

func TestSecondIdenticalSendRemoves(t *testing.T) {
	h, store, _, fsm := newHarness(Config{})
	user := int64(7)
	c := newTestContext(user)

	fsm.SetTemp(user, tempPack, "cats")
	fsm.SetState(user, StateAwaitingMedia)

	c.message = stickerMsg("file-1")
	require.NoError(t, h.stateAwaitingMedia(c))
	require.NoError(t, h.stateAwaitingMedia(c))
	assert.Contains(t, c.lastReply(t), "Removed")

	exists, err := store.EntryExists(context.Background(), user, "cats", entry.Entry{Type: entry.TypeMedia, Data: "file-1"})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestQuotaBlocksInsertButNotRemoval(t *testing.T) {
	store := storage.NewMemStore()
	fsm := state.NewMemoryManager()
	tp := &fakeTransport{sets: map[string]*tele.StickerSet{}, files: map[string][]byte{}}
	h := New(store, limits.NewGate(store, 1), fsm, Config{})
	h.AttachBot(tp)

	user := int64(7)
	seed(t, store, user, "cats", entry.Entry{Type: entry.TypeMedia, Data: "file-1"})

	fsm.SetTemp(user, tempPack, "cats")
	fsm.SetState(user, StateAwaitingMedia)
	c := newTestContext(user)

	c.message = stickerMsg("file-2")
	require.NoError(t, h.stateAwaitingMedia(c))
	assert.Contains(t, c.lastReply(t), "Quota reached")
	n, err := store.CountEntries(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// removal of the existing entry is always allowed
	c.message = stickerMsg("file-1")
	require.NoError(t, h.stateAwaitingMedia(c))
	assert.Contains(t, c.lastReply(t), "Removed")
}

func TestViewPagesAndCleansUpPreviousMedia(t *testing.T) {
	h, store, tp, _ := newHarness(Config{ViewPageSize: 2})
	user := int64(7)
	seed(t, store, user, "cats",
		entry.Entry{Type: entry.TypeMedia, Data: "a"},
		entry.Entry{Type: entry.TypeMedia, Data: "b"},
		entry.Entry{Type: entry.TypeAnimatedMedia, Data: "c"},
	)

	c := newTestContext(user)
	c.cb = callbackTo(ActionViewPage, viewTarget{Pack: "cats", Page: 0}.encode())
	require.NoError(t, h.cbViewPage(c))

	require.Len(t, tp.sent, 2)
	assert.IsType(t, &tele.Sticker{}, tp.sent[0].what)
	assert.Contains(t, c.lastReply(t), "page 1")

	c.cb = callbackTo(ActionViewPage, viewTarget{Pack: "cats", Page: 1}.encode())
	require.NoError(t, h.cbViewPage(c))

	assert.Len(t, tp.deleted, 2, "previous page media removed")
	require.Len(t, tp.sent, 3)
	assert.IsType(t, &tele.Animation{}, tp.sent[2].what)
	assert.Contains(t, c.lastReply(t), "page 2")
}

func TestViewExpandsExternalPacks(t *testing.T) {
	h, store, tp, _ := newHarness(Config{})
	user := int64(7)
	seed(t, store, user, "cats",
		entry.Entry{Type: entry.TypeMedia, Data: "a"},
		entry.Entry{Type: entry.TypeExternalPack, Data: "setx"},
	)
	tp.sets["setx"] = &tele.StickerSet{Stickers: []tele.Sticker{
		{File: tele.File{FileID: "x1"}},
		{File: tele.File{FileID: "x2"}},
	}}

	c := newTestContext(user)
	c.cb = callbackTo(ActionViewPage, viewTarget{Pack: "cats", Page: 0}.encode())
	require.NoError(t, h.cbViewPage(c))

	require.Len(t, tp.sent, 3)
}

func TestViewScrubsVanishedExternalPack(t *testing.T) {
	h, store, tp, _ := newHarness(Config{})
	user := int64(7)
	seed(t, store, user, "cats",
		entry.Entry{Type: entry.TypeMedia, Data: "a"},
		entry.Entry{Type: entry.TypeExternalPack, Data: "gone"},
	)

	c := newTestContext(user)
	c.cb = callbackTo(ActionViewPage, viewTarget{Pack: "cats", Page: 0}.encode())
	require.NoError(t, h.cbViewPage(c))

	exists, err := store.EntryExists(context.Background(), user, "cats",
		entry.Entry{Type: entry.TypeExternalPack, Data: "gone"})
	require.NoError(t, err)
	assert.False(t, exists, "reference to the vanished set is scrubbed")

	// owner notification plus the one real media item
	require.Len(t, tp.sent, 2)
	notice, ok := tp.sent[0].what.(string)
	require.True(t, ok)
	assert.Contains(t, notice, "gone")
}

func TestViewDeliveryFailureHaltsGracefully(t *testing.T) {
	h, store, tp, _ := newHarness(Config{})
	user := int64(7)
	seed(t, store, user, "cats",
		entry.Entry{Type: entry.TypeMedia, Data: "a"},
		entry.Entry{Type: entry.TypeMedia, Data: "b"},
	)
	tp.sendErr = &tele.Error{Code: 400, Description: "Bad Request: wrong file identifier"}

	c := newTestContext(user)
	c.cb = callbackTo(ActionViewPage, viewTarget{Pack: "cats", Page: 0}.encode())
	require.NoError(t, h.cbViewPage(c))

	require.GreaterOrEqual(t, len(c.replies), 2)
	assert.Contains(t, c.replies[len(c.replies)-2], "can no longer be delivered")
	assert.Contains(t, c.lastReply(t), "page 1", "navigation still rendered")
}

func TestRemovePack(t *testing.T) {
	h, store, _, _ := newHarness(Config{})
	user := int64(7)
	seed(t, store, user, "cats", entry.Entry{Type: entry.TypeMedia, Data: "a"})

	c := newTestContext(user)
	c.cb = callbackTo(ActionRemovePack, "cats")
	require.NoError(t, h.cbRemovePack(c))

	ok, err := store.PackExists(context.Background(), user, "cats")
	require.NoError(t, err)
	assert.False(t, ok)

	c.cb = callbackTo(ActionRemovePack, "cats")
	require.NoError(t, h.cbRemovePack(c))
	assert.Contains(t, c.replies, "Pack «cats» does not exist.")
}

func TestExportSendsJSONDocument(t *testing.T) {
	h, store, tp, _ := newHarness(Config{})
	user := int64(7)
	seed(t, store, user, "cats", entry.Entry{Type: entry.TypeMedia, Data: "a"})

	c := newTestContext(user)
	c.cb = callbackTo(ActionExportPack, "cats")
	require.NoError(t, h.cbExportPack(c))

	require.Len(t, tp.sent, 1)
	doc, ok := tp.sent[0].what.(*tele.Document)
	require.True(t, ok)
	assert.Equal(t, "cats.json", doc.FileName)
	assert.Equal(t, "application/json", doc.MIME)
}

func TestInlineQueryPagesWithCursor(t *testing.T) {
	h, store, _, _ := newHarness(Config{InlinePageSize: 2})
	user := int64(7)
	seed(t, store, user, "cats",
		entry.Entry{Type: entry.TypeMedia, Data: "a"},
		entry.Entry{Type: entry.TypeMedia, Data: "b"},
		entry.Entry{Type: entry.TypeAnimatedMedia, Data: "c"},
	)

	c := newTestContext(user)
	c.query = &tele.Query{Text: "ca"}
	require.NoError(t, h.OnInlineQuery(c))

	require.Len(t, c.answers, 1)
	assert.Len(t, c.answers[0].Results, 2)
	assert.Equal(t, "1", c.answers[0].NextOffset)

	c.query = &tele.Query{Text: "ca", Offset: "1"}
	require.NoError(t, h.OnInlineQuery(c))
	require.Len(t, c.answers, 2)
	assert.Len(t, c.answers[1].Results, 1)
	assert.Empty(t, c.answers[1].NextOffset)
}

func TestInlineQueryOffersCreateDeepLink(t *testing.T) {
	h, _, _, _ := newHarness(Config{})
	c := newTestContext(7)
	c.query = &tele.Query{Text: "newpack"}
	require.NoError(t, h.OnInlineQuery(c))

	require.Len(t, c.answers, 1)
	assert.Empty(t, c.answers[0].Results)
	assert.Equal(t, deeplinkCreatePrefix+"newpack", c.answers[0].SwitchPMParameter)
}

func TestStartDeepLinkJumpsIntoCreate(t *testing.T) {
	h, _, _, fsm := newHarness(Config{})
	user := int64(7)
	c := newTestContext(user)
	c.message = &tele.Message{Text: "/start", Payload: deeplinkCreatePrefix + "mypack"}

	require.NoError(t, h.onStart(c))
	assert.Equal(t, StateAwaitingMedia, fsm.GetState(user))
	pack, ok := fsm.GetTempString(user, tempPack)
	require.True(t, ok)
	assert.Equal(t, "mypack", pack)
}

func TestCancelClearsAnyFlow(t *testing.T) {
	h, _, _, fsm := newHarness(Config{})
	user := int64(7)
	fsm.SetTemp(user, tempPack, "cats")
	fsm.SetState(user, StateAwaitingMedia)

	c := newTestContext(user)
	c.message = textMsg("/cancel")
	require.NoError(t, h.stateAwaitingMedia(c))

	assert.False(t, fsm.InProgress(user))
	assert.Contains(t, c.replies, "Cancelled.")
}

func TestImportFlowMergeEndToEnd(t *testing.T) {
	h, store, tp, fsm := newHarness(Config{})
	user := int64(7)
	seed(t, store, user, "cats", entry.Entry{Type: entry.TypeMedia, Data: "e1"})

	c := newTestContext(user)
	require.NoError(t, h.startImport(c))
	assert.Equal(t, StateImportSelectFile, fsm.GetState(user))

	raw := []byte(`{"version":"1.0","packs":[{"name":"cats","entries":[["s","e1"],["s","e2"]]}]}`)
	tp.files["doc-1"] = raw
	c.message = &tele.Message{Document: &tele.Document{File: tele.File{FileID: "doc-1", FileSize: int64(len(raw))}}}
	require.NoError(t, h.stateImportSelectFile(c))

	assert.Equal(t, StateImportResolveConflict, fsm.GetState(user))
	assert.Contains(t, c.lastReply(t), "cats")
	assert.Contains(t, c.lastReply(t), "1 new entries")

	c.message = textMsg("Merge")
	require.NoError(t, h.stateImportResolveConflict(c))
	assert.Equal(t, StateImportLastConfirm, fsm.GetState(user))
	assert.Contains(t, c.lastReply(t), "cats (MERGE)")

	c.message = textMsg("Confirm")
	require.NoError(t, h.stateImportLastConfirm(c))

	entries, err := store.ListEntries(context.Background(), user, "cats", storage.MatchExact)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "union of existing and imported entries")
	assert.False(t, fsm.InProgress(user))
	assert.Contains(t, c.replies, "Import finished: 1 new entries across 1 packs.")
}

func TestImportRejectsUnsupportedVersion(t *testing.T) {
	h, _, tp, fsm := newHarness(Config{})
	user := int64(7)

	c := newTestContext(user)
	require.NoError(t, h.startImport(c))

	raw := []byte(`{"version":"2.0","packs":[]}`)
	tp.files["doc-1"] = raw
	c.message = &tele.Message{Document: &tele.Document{File: tele.File{FileID: "doc-1", FileSize: int64(len(raw))}}}
	require.NoError(t, h.stateImportSelectFile(c))

	assert.Contains(t, c.lastReply(t), "not supported")
	assert.Equal(t, StateImportSelectFile, fsm.GetState(user), "session stays put for a retry")
}

func TestImportNonFileReply(t *testing.T) {
	h, _, _, _ := newHarness(Config{})
	c := newTestContext(7)
	require.NoError(t, h.startImport(c))

	c.message = textMsg("hello")
	require.NoError(t, h.stateImportSelectFile(c))
	assert.Contains(t, c.lastReply(t), "not a file")
}
