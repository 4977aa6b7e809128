package req

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livechat/internal/pkg/errs"
)

type nameInput struct {
	Name string `json:"name"`
}

func jsonRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestBindJSON(t *testing.T) {
	var in nameInput
	require.Nil(t, BindJSON(jsonRequest(`{"name":"general"}`), &in))
	assert.Equal(t, "general", in.Name)

	tests := []struct {
		name string
		req  *http.Request
		code int
	}{
		{"wrong content type", httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)), errs.ErrUnsupportedMediaType},
		{"malformed", jsonRequest(`{"name":`), errs.ErrInvalidJSONFormat},
		{"unknown field", jsonRequest(`{"nickname":"x"}`), errs.ErrInvalidJSONFormat},
		{"trailing data", jsonRequest(`{"name":"a"} {"name":"b"}`), errs.ErrExtraContentInBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst nameInput
			err := BindJSON(tt.req, &dst)
			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
		})
	}
}

func TestPathID(t *testing.T) {
	withParam := func(value string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("chatroomID", value)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}

	id, err := PathID(withParam("42"), "chatroomID")
	require.Nil(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := PathID(withParam(bad), "chatroomID")
		require.NotNil(t, err, bad)
		assert.Equal(t, errs.ErrInvalidParams, err.Code)
		assert.Contains(t, err.Fields, "chatroomID")
	}
}

func TestMultipartFormFile(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("content", "hi"))
	part, err := mw.CreateFormFile("image", "cat.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	assert.True(t, IsMultipart(r))

	require.Nil(t, SetupMultipart(httptest.NewRecorder(), r))

	file, header, customErr := FormFile(r, "image")
	require.Nil(t, customErr)
	require.NotNil(t, file)
	defer file.Close()
	assert.Equal(t, "cat.png", header.Filename)

	missing, _, customErr := FormFile(r, "avatar")
	assert.Nil(t, customErr)
	assert.Nil(t, missing)
}
