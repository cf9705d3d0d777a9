package describe

import (
	"context"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caption-server-go/internal/domain/caption"
	domaindescribe "caption-server-go/internal/domain/describe"
	"caption-server-go/internal/domain/fetch"
	domainimage "caption-server-go/internal/domain/image"
	"caption-server-go/internal/domain/safety"
	testhelpers "caption-server-go/internal/platform/testing"
	httptransport "caption-server-go/internal/transport/http"
)

type stubDescriber struct {
	calls []string
	text  string
	err   error
}

func (s *stubDescriber) Describe(_ context.Context, rawURL string) (string, error) {
	s.calls = append(s.calls, rawURL)
	return s.text, s.err
}

func newTestEngine(t *testing.T, describer Describer, maxBody int64) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testhelpers.SetupTestConfig(t)
	logger := testhelpers.SetupTestLogger(t)
	router, err := httptransport.Build(httptransport.Options{Config: cfg, Logger: logger})
	require.NoError(t, err)

	svc, err := NewService(describer, logger, maxBody)
	require.NoError(t, err)
	require.NoError(t, svc.Register(context.Background(), router.API))
	return router.Engine
}

func post(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/describe-url", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestNewServiceRequiresDescriber(t *testing.T) {
	_, err := NewService(nil, nil, 0)
	assert.Error(t, err)
}

func TestDescribeSuccess(t *testing.T) {
	stub := &stubDescriber{text: "a cat on a sofa"}
	handler := newTestEngine(t, stub, 0)

	rec := post(handler, `{"image_url":"https://example.com/cat.jpg","extra":1}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"description":"a cat on a sofa"}`, rec.Body.String())
	assert.Equal(t, []string{"https://example.com/cat.jpg"}, stub.calls)
}

func TestDescribeInvalidBodies(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"not json":       `image_url=x`,
		"missing field":  `{}`,
		"null url":       `{"image_url":null}`,
		"wrong type":     `{"image_url":42}`,
		"truncated json": `{"image_url":"https://exa`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			stub := &stubDescriber{}
			handler := newTestEngine(t, stub, 0)

			rec := post(handler, body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"detail":"Invalid request body"}`, rec.Body.String())
			assert.Empty(t, stub.calls)
		})
	}
}

func TestDescribeBodyLimit(t *testing.T) {
	stub := &stubDescriber{text: "unused"}
	handler := newTestEngine(t, stub, 64)

	rec := post(handler, `{"image_url":"https://example.com/`+strings.Repeat("a", 128)+`.jpg"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, stub.calls)
}

func TestDescribeErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{
			name:   "forbidden",
			err:    &domaindescribe.Error{Kind: domaindescribe.KindForbiddenTarget, Message: domaindescribe.DetailForbidden},
			status: http.StatusBadRequest,
			detail: "Private/internal URLs not allowed",
		},
		{
			name:   "upstream status",
			err:    &domaindescribe.Error{Kind: domaindescribe.KindUpstreamStatus, Message: domaindescribe.DetailFetchFailed},
			status: http.StatusBadRequest,
			detail: "Failed to fetch image",
		},
		{
			name:   "too large",
			err:    &domaindescribe.Error{Kind: domaindescribe.KindPayloadTooLarge, Message: domaindescribe.TooLargeDetail(5 << 20)},
			status: http.StatusBadRequest,
			detail: "Image too large (max 5MB)",
		},
		{
			name:   "decode",
			err:    &domaindescribe.Error{Kind: domaindescribe.KindDecode, Message: domaindescribe.DetailInternalError, Cause: errors.New("bad magic")},
			status: http.StatusInternalServerError,
			detail: "Internal server error",
		},
		{
			name:   "caption",
			err:    &domaindescribe.Error{Kind: domaindescribe.KindCaption, Message: domaindescribe.DetailInternalError},
			status: http.StatusInternalServerError,
			detail: "Internal server error",
		},
		{
			name:   "foreign error",
			err:    errors.New("dial tcp: secret internals"),
			status: http.StatusInternalServerError,
			detail: "Internal server error",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestEngine(t, &stubDescriber{err: tc.err}, 0)

			rec := post(handler, `{"image_url":"https://example.com/x.png"}`)

			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, `{"detail":"`+tc.detail+`"}`, rec.Body.String())
		})
	}
}

type allowAll struct{}

func (allowAll) Check(_ context.Context, host string) safety.Result {
	return safety.Result{Host: host, Verdict: safety.VerdictSafe}
}

func newPipeline(t *testing.T, checker domaindescribe.AddressChecker) *domaindescribe.Service {
	t.Helper()

	svc, err := domaindescribe.NewService(domaindescribe.Options{
		Checker: checker,
		Fetcher: fetch.New(fetch.Options{}),
		Decoder: domainimage.NewDecoder(domainimage.DefaultLimits(), nil),
		Engine:  caption.NewGate(caption.NewStaticEngine("a red square."), 1, 0, nil),
	})
	require.NoError(t, err)
	return svc
}

func TestDescribeEndToEnd(t *testing.T) {
	data := testhelpers.PNGBytes(t, 8, 8, color.NRGBA{R: 255, A: 255})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/red.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer upstream.Close()

	handler := newTestEngine(t, newPipeline(t, allowAll{}), 0)

	rec := post(handler, `{"image_url":"`+upstream.URL+`/red.png"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"description":"a red square."}`, rec.Body.String())

	rec = post(handler, `{"image_url":"`+upstream.URL+`/missing.png"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"Failed to fetch image"}`, rec.Body.String())

	for _, bad := range []string{"", "ftp://example.com/x.png", "not a url"} {
		rec = post(handler, `{"image_url":"`+bad+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
		assert.JSONEq(t, `{"detail":"Invalid image URL"}`, rec.Body.String(), bad)
	}
}

func TestDescribeLoopbackIsForbidden(t *testing.T) {
	policy, err := safety.NewPolicy(true, nil)
	require.NoError(t, err)
	checker := safety.NewChecker(policy, nil, nil)
	handler := newTestEngine(t, newPipeline(t, checker), 0)

	for _, target := range []string{
		"http://127.0.0.1/x.png",
		"http://[::1]:8080/x.png",
		"http://10.0.0.7/x.png",
		"http://169.254.169.254/latest/meta-data",
	} {
		rec := post(handler, `{"image_url":"`+target+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.JSONEq(t, `{"detail":"Private/internal URLs not allowed"}`, rec.Body.String(), target)
	}
}
