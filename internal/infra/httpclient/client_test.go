package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDoReturnsBodyOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	req, err := NewJSONRequest(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	body, err := Do(New(time.Second), "probe", req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestDoExtractsVendorMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "openai_style", body: `{"error":{"message":"quota exceeded"}}`, want: "quota exceeded"},
		{name: "deepgram_style", body: `{"err_msg":"bad text"}`, want: "bad text"},
		{name: "did_style", body: `{"description":"insufficient credits","kind":"Forbidden"}`, want: "insufficient credits"},
		{name: "plain_text", body: "upstream down", want: "upstream down"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			req, _ := NewJSONRequest(context.Background(), http.MethodPost, srv.URL, []byte(`{}`))
			_, err := Do(New(time.Second), "vendor call", req)

			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("expected request error, got %v", err)
			}
			if reqErr.StatusCode != http.StatusBadGateway {
				t.Fatalf("unexpected status: got %d want %d", reqErr.StatusCode, http.StatusBadGateway)
			}
			msg, ok := ProviderMessage(err)
			if !ok || msg != tc.want {
				t.Fatalf("unexpected provider message: got %q want %q", msg, tc.want)
			}
		})
	}
}

func TestProviderMessageIgnoresOtherErrors(t *testing.T) {
	if _, ok := ProviderMessage(errors.New("boom")); ok {
		t.Fatalf("plain errors are not provider errors")
	}
	if IsProviderError(nil) {
		t.Fatalf("nil is not a provider error")
	}
}
