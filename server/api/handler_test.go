package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/tracekit/protoargs/x/args"
	"github.com/tracekit/protoargs/x/argstore"
	"github.com/tracekit/protoargs/x/extract"
	"github.com/tracekit/protoargs/x/framing"
	"github.com/tracekit/protoargs/x/schema"
)

func testHandler(t *testing.T) (*Handler, *argstore.Store, *mux.Router) {
	t.Helper()

	fds := &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{
			{
				Name:    proto.String("ev.proto"),
				Package: proto.String("ev"),
				MessageType: []*descriptorpb.DescriptorProto{
					{
						Name: proto.String("Event"),
						Field: []*descriptorpb.FieldDescriptorProto{
							{
								Name:   proto.String("id"),
								Number: proto.Int32(1),
								Type:   descriptorpb.FieldDescriptorProto_TYPE_INT64.Enum(),
								Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
							},
							{
								Name:   proto.String("name"),
								Number: proto.Int32(2),
								Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
								Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
							},
						},
					},
				},
			},
		},
	}

	pool := schema.NewPool()
	require.NoError(t, pool.AddFileDescriptorSet(fds))

	cfg := extract.DefaultConfig()
	cfg.MetricsEnabled = false
	svc, err := extract.New(pool, cfg, zerolog.Nop())
	require.NoError(t, err)

	store := argstore.New()
	h := NewHandler(svc, store, 1<<20, zerolog.Nop())

	r := mux.NewRouter()
	h.RegisterMux(r)
	return h, store, r
}

func eventBytes(id uint64, name string) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, id)
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendString(buf, name)
	return buf
}

func TestHandleDecode(t *testing.T) {
	t.Parallel()

	_, _, router := testHandler(t)

	body, err := json.Marshal(map[string]any{
		"type":    ".ev.Event",
		"payload": base64.StdEncoding.EncodeToString(eventBytes(7, "launch")),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/decode", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp decodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "id", resp.Rows[0].FlatKey)
	assert.Equal(t, int64(7), resp.Rows[0].Int)
	assert.Equal(t, "launch", resp.Rows[1].Str)
}

func TestHandleDecodeUnknownType(t *testing.T) {
	t.Parallel()

	_, _, router := testHandler(t)

	body, _ := json.Marshal(map[string]any{"type": ".ev.Missing", "payload": ""})
	req := httptest.NewRequest(http.MethodPost, "/v1/decode", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDecodeBadRequest(t *testing.T) {
	t.Parallel()

	_, _, router := testHandler(t)

	for _, body := range []string{
		"{not json",
		`{"payload":""}`,
		`{"type":".ev.Event","payload":"!!!"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/v1/decode", bytes.NewReader([]byte(body)))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", body)
	}
}

func TestHandleIngestAndQuery(t *testing.T) {
	t.Parallel()

	_, store, router := testHandler(t)

	var stream []byte
	stream = framing.AppendRecord(stream, eventBytes(1, "a"))
	stream = framing.AppendRecord(stream, eventBytes(2, "b"))

	req := httptest.NewRequest(http.MethodPost, "/v1/ingest?type=.ev.Event", bytes.NewReader(stream))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var ing ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ing))
	assert.Equal(t, 2, ing.Records)
	assert.Equal(t, 4, ing.Rows)
	assert.Equal(t, 4, store.Len())

	req = httptest.NewRequest(http.MethodGet, "/v1/args?flat_key=name&limit=1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var q queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	require.Equal(t, 1, q.Total)
	assert.Equal(t, "name", q.Rows[0].FlatKey)
}

func TestHandleIngestMissingType(t *testing.T) {
	t.Parallel()

	_, _, router := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleResetArgs(t *testing.T) {
	t.Parallel()

	_, store, router := testHandler(t)
	store.AddInteger(args.Key{FlatKey: "x", Key: "x"}, 1)
	require.Equal(t, 1, store.Len())

	req := httptest.NewRequest(http.MethodDelete, "/v1/args", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, store.Len())
}
