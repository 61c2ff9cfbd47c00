package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chaz8081/gostt-translate/internal/api"
	"github.com/chaz8081/gostt-translate/internal/api/apitest"
	"github.com/chaz8081/gostt-translate/internal/auth"
)

var creds = auth.Credentials{Token: apitest.Token, CallerID: apitest.Email}

func newClient(t *testing.T, baseURL string, opts api.Options) *api.Client {
	t.Helper()
	c, err := api.New(baseURL, opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func writeRecording(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recording-1.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing recording: %v", err)
	}
	return path
}

func TestNewRejectsRelativeURL(t *testing.T) {
	if _, err := api.New("/api", api.Options{}); err == nil {
		t.Fatal("New(\"/api\") should fail")
	}
}

func TestTranslate(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv.URL, api.Options{})
	payload := []byte("RIFF....WAVEfmt ")
	path := writeRecording(t, payload)

	res, err := c.Translate(context.Background(), api.TranslateRequest{
		Credentials: creds,
		FilePath:    path,
		SourceLang:  "eng_Latn",
		TargetLang:  "hin_Deva",
	})
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if res.Transcription != "hello" {
		t.Errorf("Transcription = %q, want %q", res.Transcription, "hello")
	}
	if res.Translation != "नमस्ते" {
		t.Errorf("Translation = %q, want %q", res.Translation, "नमस्ते")
	}

	ups := srv.Uploads(apitest.RouteTranslate)
	if len(ups) != 1 {
		t.Fatalf("translate hits = %d, want 1", len(ups))
	}
	u := ups[0]
	want := map[string]string{"user_email": apitest.Email, "source_lang": "eng_Latn", "target_lang": "hin_Deva"}
	for k, v := range want {
		if u.Fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, u.Fields[k], v)
		}
	}
	if u.FileName != "recording.wav" {
		t.Errorf("FileName = %q, want %q", u.FileName, "recording.wav")
	}
	if u.ContentType != "audio/wav" {
		t.Errorf("ContentType = %q, want %q", u.ContentType, "audio/wav")
	}
	if !bytes.Equal(u.Data, payload) {
		t.Errorf("Data = %q, want %q", u.Data, payload)
	}
}

func TestTranslateMissingFile(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv.URL, api.Options{})

	_, err := c.Translate(context.Background(), api.TranslateRequest{
		Credentials: creds,
		FilePath:    filepath.Join(t.TempDir(), "gone.wav"),
	})
	if err == nil {
		t.Fatal("Translate() should fail for a missing file")
	}
	if api.IsRetryable(err) {
		t.Error("missing file should not be retryable")
	}
	if srv.Hits(apitest.RouteTranslate) != 0 {
		t.Error("nothing should be sent for a missing file")
	}
}

func TestTranslateEmptyTranslationIsSuccess(t *testing.T) {
	srv := apitest.New(t)
	srv.OnTranslate(func(context.Context, apitest.Upload) (int, any) {
		return http.StatusOK, map[string]string{"transcription": "", "translation": ""}
	})
	c := newClient(t, srv.URL, api.Options{})

	res, err := c.Translate(context.Background(), api.TranslateRequest{Credentials: creds, FilePath: writeRecording(t, []byte("x"))})
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if res.Translation != "" {
		t.Errorf("Translation = %q, want empty", res.Translation)
	}
}

func TestTranslateAuthExpired(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv.URL, api.Options{})

	_, err := c.Translate(context.Background(), api.TranslateRequest{
		Credentials: auth.Credentials{Token: "stale", CallerID: apitest.Email},
		FilePath:    writeRecording(t, []byte("x")),
	})
	if !errors.Is(err, api.ErrAuthExpired) {
		t.Fatalf("error = %v, want ErrAuthExpired", err)
	}
	if api.IsRetryable(err) {
		t.Error("auth expiry should not be retryable")
	}

	var se *api.StageError
	if !errors.As(err, &se) || se.Stage != api.StageTranslate {
		t.Errorf("error = %#v, want StageError for %q", err, api.StageTranslate)
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusUnprocessableEntity, false},
	}

	srv := apitest.New(t)
	c := newClient(t, srv.URL, api.Options{})
	path := writeRecording(t, []byte("x"))

	for _, tt := range tests {
		srv.OnTranslate(func(context.Context, apitest.Upload) (int, any) {
			return tt.status, map[string]string{"detail": "nope"}
		})
		_, err := c.Translate(context.Background(), api.TranslateRequest{Credentials: creds, FilePath: path})
		if err == nil {
			t.Errorf("status %d: expected error", tt.status)
			continue
		}
		if got := api.IsRetryable(err); got != tt.retryable {
			t.Errorf("status %d: IsRetryable = %v, want %v", tt.status, got, tt.retryable)
		}
		var se *api.StatusError
		if !errors.As(err, &se) || se.StatusCode != tt.status {
			t.Errorf("status %d: error = %v, want StatusError", tt.status, err)
		}
	}
}

func TestTranslateMalformedBody(t *testing.T) {
	srv := apitest.New(t)
	srv.OnTranslate(func(context.Context, apitest.Upload) (int, any) {
		return http.StatusOK, "<html>gateway</html>"
	})
	c := newClient(t, srv.URL, api.Options{})

	_, err := c.Translate(context.Background(), api.TranslateRequest{Credentials: creds, FilePath: writeRecording(t, []byte("x"))})
	if !errors.Is(err, api.ErrMalformedResponse) {
		t.Fatalf("error = %v, want ErrMalformedResponse", err)
	}
	if api.IsRetryable(err) {
		t.Error("malformed response should not be retryable")
	}
}

func TestTranslateNetworkFailure(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv.URL, api.Options{})
	srv.Close()

	_, err := c.Translate(context.Background(), api.TranslateRequest{Credentials: creds, FilePath: writeRecording(t, []byte("x"))})
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if !api.IsRetryable(err) {
		t.Errorf("network failure should be retryable: %v", err)
	}
}

func TestTranslateTimeout(t *testing.T) {
	srv := apitest.New(t)
	srv.OnTranslate(func(ctx context.Context, _ apitest.Upload) (int, any) {
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
		}
		return http.StatusOK, map[string]string{"translation": "late"}
	})
	c := newClient(t, srv.URL, api.Options{TranslateTimeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := c.Translate(context.Background(), api.TranslateRequest{Credentials: creds, FilePath: writeRecording(t, []byte("x"))})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}
	if !api.IsRetryable(err) {
		t.Error("timeout should be retryable")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Translate took %v, timeout not applied", elapsed)
	}
}

func TestSynthesizeWithAccent(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv.URL, api.Options{})

	res, err := c.Synthesize(context.Background(), api.SynthesizeRequest{
		Credentials:    creds,
		TranslatedText: "नमस्ते",
		Transcription:  "hello",
		TargetLang:     "hin_Deva",
		AccentID:       "7",
	})
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	if res.ArtifactRef != "media/out.wav" {
		t.Errorf("ArtifactRef = %q, want %q", res.ArtifactRef, "media/out.wav")
	}

	u := srv.Uploads(apitest.RouteSynthesize)[0]
	want := map[string]string{
		"user_email":       apitest.Email,
		"translated_text":  "नमस्ते",
		"transcription":    "hello",
		"target_lang":      "hin_Deva",
		"use_saved_accent": "true",
		"saved_accent_id":  "7",
	}
	for k, v := range want {
		if u.Fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, u.Fields[k], v)
		}
	}
}

func TestSynthesizeWithoutAccent(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv.URL, api.Options{})

	_, err := c.Synthesize(context.Background(), api.SynthesizeRequest{
		Credentials:    creds,
		TranslatedText: "hola",
		TargetLang:     "spa_Latn",
	})
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}

	u := srv.Uploads(apitest.RouteSynthesize)[0]
	if u.Fields["use_saved_accent"] != "false" {
		t.Errorf("use_saved_accent = %q, want %q", u.Fields["use_saved_accent"], "false")
	}
	if _, ok := u.Fields["saved_accent_id"]; ok {
		t.Error("saved_accent_id should not be sent without an accent")
	}
}

func TestSynthesizeNoArtifact(t *testing.T) {
	srv := apitest.New(t)
	srv.OnSynthesize(func(context.Context, apitest.Upload) (int, any) {
		return http.StatusOK, map[string]string{"synthesis_status": "failed"}
	})
	c := newClient(t, srv.URL, api.Options{})

	_, err := c.Synthesize(context.Background(), api.SynthesizeRequest{Credentials: creds, TranslatedText: "x"})
	if !errors.Is(err, api.ErrNoArtifact) {
		t.Fatalf("error = %v, want ErrNoArtifact", err)
	}
	if api.IsRetryable(err) {
		t.Error("missing artifact should not be retryable")
	}
}

func TestResolveArtifact(t *testing.T) {
	c := newClient(t, "http://192.168.0.147:8000/", api.Options{})

	tests := []struct {
		ref  string
		want string
	}{
		{"media/out.wav", "http://192.168.0.147:8000/media/out.wav"},
		{"/media/out.wav", "http://192.168.0.147:8000/media/out.wav"},
		{`media\out.wav`, "http://192.168.0.147:8000/media/out.wav"},
		{"https://cdn.example.com/a.wav", "https://cdn.example.com/a.wav"},
	}
	for _, tt := range tests {
		got, err := c.ResolveArtifact(tt.ref)
		if err != nil {
			t.Errorf("ResolveArtifact(%q) error: %v", tt.ref, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveArtifact(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}

	if _, err := c.ResolveArtifact(""); !errors.Is(err, api.ErrNoArtifact) {
		t.Errorf("ResolveArtifact(\"\") error = %v, want ErrNoArtifact", err)
	}
}

func TestAccentLifecycle(t *testing.T) {
	srv := apitest.New(t)
	srv.AddAccent("Grandma", "hin_Deva")
	c := newClient(t, srv.URL, api.Options{})
	ctx := context.Background()

	saved, err := c.SaveAccent(ctx, creds, writeRecording(t, []byte("voice")), "Me", "eng_Latn")
	if err != nil {
		t.Fatalf("SaveAccent() error: %v", err)
	}
	if saved.ID != "2" || saved.Name != "Me" || saved.Language != "eng_Latn" {
		t.Errorf("SaveAccent() = %+v", saved)
	}
	up := srv.Uploads(apitest.RouteSaveAccent)[0]
	if up.FileName != "accent.wav" {
		t.Errorf("FileName = %q, want %q", up.FileName, "accent.wav")
	}

	list, err := c.ListAccents(ctx, creds)
	if err != nil {
		t.Fatalf("ListAccents() error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListAccents() returned %d accents, want 2", len(list))
	}
	if list[0].ID != "1" || list[0].Name != "Grandma" || list[0].Language != "hin_Deva" {
		t.Errorf("list[0] = %+v", list[0])
	}
	if q := srv.Uploads(apitest.RouteListAccents)[0].Query["user_email"]; q != apitest.Email {
		t.Errorf("user_email query = %q, want %q", q, apitest.Email)
	}

	if err := c.DeleteAccent(ctx, creds, "1"); err != nil {
		t.Fatalf("DeleteAccent() error: %v", err)
	}
	if got := srv.Accents(); len(got) != 1 || got[0].ID != 2 {
		t.Errorf("accents after delete = %+v", got)
	}

	err = c.DeleteAccent(ctx, creds, "99")
	var se *api.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Errorf("DeleteAccent(99) error = %v, want 404", err)
	}
}

func TestSavedAccentDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    api.SavedAccent
		wantErr bool
	}{
		{
			name: "numeric id",
			in:   `{"id": 12, "name": "Dad", "language": "spa_Latn", "file_path": "a/12.wav"}`,
			want: api.SavedAccent{ID: "12", Name: "Dad", Language: "spa_Latn", FilePath: "a/12.wav"},
		},
		{
			name: "string id with language_code",
			in:   `{"id": "ab-1", "name": "Mom", "language_code": "fra_Latn"}`,
			want: api.SavedAccent{ID: "ab-1", Name: "Mom", Language: "fra_Latn"},
		},
		{
			name: "accent_name",
			in:   `{"id": 3, "accent_name": "Boss", "lang": "deu_Latn"}`,
			want: api.SavedAccent{ID: "3", Name: "Boss", Language: "deu_Latn"},
		},
		{
			name:    "missing id",
			in:      `{"name": "x"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got api.SavedAccent
			err := json.Unmarshal([]byte(tt.in), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWhoAmI(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv.URL, api.Options{})

	email, err := c.WhoAmI(context.Background(), apitest.Token)
	if err != nil {
		t.Fatalf("WhoAmI() error: %v", err)
	}
	if email != apitest.Email {
		t.Errorf("WhoAmI() = %q, want %q", email, apitest.Email)
	}

	if _, err := c.WhoAmI(context.Background(), "bad"); !errors.Is(err, api.ErrAuthExpired) {
		t.Errorf("WhoAmI(bad) error = %v, want ErrAuthExpired", err)
	}
}

func TestMeResolverWithClient(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv.URL, api.Options{})
	r := auth.NewMeResolver(apitest.Token, c)

	for i := 0; i < 2; i++ {
		got, err := r.Credentials(context.Background())
		if err != nil {
			t.Fatalf("Credentials() error: %v", err)
		}
		if got.CallerID != apitest.Email {
			t.Errorf("CallerID = %q, want %q", got.CallerID, apitest.Email)
		}
	}
	if hits := srv.Hits(apitest.RouteMe); hits != 1 {
		t.Errorf("/api/users/me hits = %d, want 1", hits)
	}
}
