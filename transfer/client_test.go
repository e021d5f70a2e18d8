package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "en.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func newServer(t *testing.T, r *mux.Router) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestUpload(t *testing.T) {
	t.Parallel()

	t.Run("sends multipart fields and succeeds on 201", func(t *testing.T) {
		src := writeSource(t, `{"hello":"world"}`)

		var got struct {
			auth, path, output, tag, extra, fileName, fileBody string
		}
		r := mux.NewRouter()
		r.HandleFunc("/source_files", func(w http.ResponseWriter, req *http.Request) {
			if err := req.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("ParseMultipartForm: %v", err)
			}
			got.auth = req.Header.Get("Authorization")
			got.path = req.FormValue("file_path")
			got.output = req.FormValue("output_file_path")
			got.tag = req.FormValue("file_tag_name")
			got.extra = req.FormValue("additional_translation_files")

			f, hdr, err := req.FormFile("file")
			if err != nil {
				t.Errorf("FormFile: %v", err)
			} else {
				body, _ := io.ReadAll(f)
				f.Close()
				got.fileName = hdr.Filename
				got.fileBody = string(body)
			}
			w.WriteHeader(http.StatusCreated)
		}).Methods(http.MethodPost)
		srv := newServer(t, r)

		c := New(srv.URL, "tok-1")
		err := c.Upload(context.Background(), Submission{
			SourcePath:    src,
			RelativePath:  "locales/en.json",
			OutputPattern: "locales/{{lang}}.json",
			Tag:           "main",
			Additional:    []string{"locales/{{lang}}.po"},
		})
		if err != nil {
			t.Fatalf("Upload error: %v", err)
		}

		if got.auth != "Bearer tok-1" {
			t.Fatalf("Authorization = %q, want Bearer tok-1", got.auth)
		}
		if got.path != "locales/en.json" || got.output != "locales/{{lang}}.json" || got.tag != "main" {
			t.Fatalf("fields = %q/%q/%q", got.path, got.output, got.tag)
		}
		if got.extra != `["locales/{{lang}}.po"]` {
			t.Fatalf("additional_translation_files = %q", got.extra)
		}
		if got.fileName != "en.json" || got.fileBody != `{"hello":"world"}` {
			t.Fatalf("file part = %q (%q)", got.fileName, got.fileBody)
		}
	})

	t.Run("proceeds without token", func(t *testing.T) {
		src := writeSource(t, "{}")

		var auth string
		var hasExtra bool
		r := mux.NewRouter()
		r.HandleFunc("/source_files", func(w http.ResponseWriter, req *http.Request) {
			req.ParseMultipartForm(1 << 20)
			auth = req.Header.Get("Authorization")
			_, hasExtra = req.MultipartForm.Value["additional_translation_files"]
			w.WriteHeader(http.StatusCreated)
		}).Methods(http.MethodPost)
		srv := newServer(t, r)

		c := New(srv.URL, "")
		err := c.Upload(context.Background(), Submission{
			SourcePath: src, RelativePath: "en.json", OutputPattern: "{{lang}}.json", Tag: "main",
		})
		if err != nil {
			t.Fatalf("Upload error: %v", err)
		}
		if auth != "" {
			t.Fatalf("Authorization = %q, want empty for unauthenticated upload", auth)
		}
		if hasExtra {
			t.Fatal("additional_translation_files sent despite no additional outputs")
		}
	})

	t.Run("non-201 is an HTTPError with body", func(t *testing.T) {
		src := writeSource(t, "{}")

		r := mux.NewRouter()
		r.HandleFunc("/source_files", func(w http.ResponseWriter, req *http.Request) {
			http.Error(w, "quota exceeded", http.StatusInternalServerError)
		}).Methods(http.MethodPost)
		srv := newServer(t, r)

		c := New(srv.URL, "tok")
		err := c.Upload(context.Background(), Submission{
			SourcePath: src, RelativePath: "en.json", OutputPattern: "{{lang}}.json", Tag: "main",
		})

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("error %v is not *HTTPError", err)
		}
		if httpErr.Op != "upload" || httpErr.StatusCode != http.StatusInternalServerError {
			t.Fatalf("HTTPError = %#v", httpErr)
		}
		if !strings.Contains(httpErr.Body, "quota exceeded") {
			t.Fatalf("Body = %q, want response text", httpErr.Body)
		}
	})

	t.Run("missing source file", func(t *testing.T) {
		c := New("http://unused.invalid", "tok")
		err := c.Upload(context.Background(), Submission{
			SourcePath: filepath.Join(t.TempDir(), "gone.json"),
		})
		if err == nil {
			t.Fatal("expected error for missing source file")
		}
	})
}

func TestStartProcessing(t *testing.T) {
	t.Parallel()

	t.Run("sends PUT multipart and succeeds on 200", func(t *testing.T) {
		src := writeSource(t, "{}")

		var path, tag string
		var hasOutput bool
		r := mux.NewRouter()
		r.HandleFunc("/source_files/process", func(w http.ResponseWriter, req *http.Request) {
			req.ParseMultipartForm(1 << 20)
			path = req.FormValue("file_path")
			tag = req.FormValue("file_tag_name")
			_, hasOutput = req.MultipartForm.Value["output_file_path"]
			if _, _, err := req.FormFile("file"); err != nil {
				t.Errorf("FormFile: %v", err)
			}
		}).Methods(http.MethodPut)
		srv := newServer(t, r)

		c := New(srv.URL, "tok")
		err := c.StartProcessing(context.Background(), Submission{
			SourcePath: src, RelativePath: "locales/en.json", OutputPattern: "unused", Tag: "main",
		})
		if err != nil {
			t.Fatalf("StartProcessing error: %v", err)
		}
		if path != "locales/en.json" || tag != "main" {
			t.Fatalf("fields = %q/%q", path, tag)
		}
		if hasOutput {
			t.Fatal("output_file_path must not be sent on process")
		}
	})

	t.Run("requires token", func(t *testing.T) {
		c := New("http://unused.invalid", "")
		err := c.StartProcessing(context.Background(), Submission{SourcePath: "x"})
		if !errors.Is(err, ErrNoToken) {
			t.Fatalf("err = %v, want ErrNoToken", err)
		}
	})

	t.Run("non-200 is an HTTPError", func(t *testing.T) {
		src := writeSource(t, "{}")

		r := mux.NewRouter()
		r.HandleFunc("/source_files/process", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}).Methods(http.MethodPut)
		srv := newServer(t, r)

		c := New(srv.URL, "tok")
		err := c.StartProcessing(context.Background(), Submission{
			SourcePath: src, RelativePath: "en.json", Tag: "main",
		})
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || httpErr.Op != "process" || httpErr.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("err = %v, want process HTTPError 422", err)
		}
	})
}

func TestGetStatus(t *testing.T) {
	t.Parallel()

	statusServer := func(t *testing.T, code int, body string) *Client {
		t.Helper()
		r := mux.NewRouter()
		r.HandleFunc("/source_files/translation_status", func(w http.ResponseWriter, req *http.Request) {
			if req.URL.Query().Get("file_path") != "locales/en.json" {
				t.Errorf("file_path = %q", req.URL.Query().Get("file_path"))
			}
			if req.URL.Query().Get("file_tag_name") != "main" {
				t.Errorf("file_tag_name = %q", req.URL.Query().Get("file_tag_name"))
			}
			w.WriteHeader(code)
			io.WriteString(w, body)
		}).Methods(http.MethodGet)
		return New(newServer(t, r).URL, "tok")
	}

	t.Run("completed maps to Ready", func(t *testing.T) {
		c := statusServer(t, http.StatusOK, `{"status":"completed","completeness":100}`)
		st, err := c.GetStatus(context.Background(), "locales/en.json", "main")
		if err != nil {
			t.Fatalf("GetStatus error: %v", err)
		}
		if st.State != Ready || st.Raw != "completed" || st.Completeness != 100 {
			t.Fatalf("Status = %#v", st)
		}
	})

	t.Run("other status maps to Pending with raw string", func(t *testing.T) {
		c := statusServer(t, http.StatusOK, `{"status":"in_progress","completeness":42.5}`)
		st, err := c.GetStatus(context.Background(), "locales/en.json", "main")
		if err != nil {
			t.Fatalf("GetStatus error: %v", err)
		}
		if st.State != Pending || st.Raw != "in_progress" || st.Completeness != 42.5 {
			t.Fatalf("Status = %#v", st)
		}
	})

	t.Run("absent status maps to status_unknown", func(t *testing.T) {
		for _, body := range []string{`{}`, `{"status":null}`, `{"status":""}`} {
			c := statusServer(t, http.StatusOK, body)
			st, err := c.GetStatus(context.Background(), "locales/en.json", "main")
			if err != nil {
				t.Fatalf("GetStatus(%s) error: %v", body, err)
			}
			if st.State != Pending || st.Raw != RawUnknown {
				t.Fatalf("GetStatus(%s) = %#v, want pending/status_unknown", body, st)
			}
		}
	})

	t.Run("404 is NotFound, not an error", func(t *testing.T) {
		c := statusServer(t, http.StatusNotFound, `{"error":"unknown file"}`)
		st, err := c.GetStatus(context.Background(), "locales/en.json", "main")
		if err != nil {
			t.Fatalf("GetStatus error: %v", err)
		}
		if st.State != NotFound {
			t.Fatalf("State = %v, want NotFound", st.State)
		}
	})

	t.Run("other codes are errors", func(t *testing.T) {
		c := statusServer(t, http.StatusBadGateway, "upstream down")
		_, err := c.GetStatus(context.Background(), "locales/en.json", "main")
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || httpErr.Op != "status" || httpErr.StatusCode != http.StatusBadGateway {
			t.Fatalf("err = %v, want status HTTPError 502", err)
		}
	})

	t.Run("malformed 200 body is an error", func(t *testing.T) {
		c := statusServer(t, http.StatusOK, "<html>oops</html>")
		_, err := c.GetStatus(context.Background(), "locales/en.json", "main")
		if err == nil || !strings.Contains(err.Error(), "parsing status response") {
			t.Fatalf("err = %v, want parse error", err)
		}
	})

	t.Run("requires token", func(t *testing.T) {
		c := New("http://unused.invalid", "")
		_, err := c.GetStatus(context.Background(), "x", "y")
		if !errors.Is(err, ErrNoToken) {
			t.Fatalf("err = %v, want ErrNoToken", err)
		}
	})
}

func TestDownloadArchive(t *testing.T) {
	t.Parallel()

	t.Run("copies body on 200", func(t *testing.T) {
		r := mux.NewRouter()
		r.HandleFunc("/source_files/download_translations", func(w http.ResponseWriter, req *http.Request) {
			if req.URL.Query().Get("file_path") != "locales/en.json" {
				t.Errorf("file_path = %q", req.URL.Query().Get("file_path"))
			}
			io.WriteString(w, "PK\x03\x04fake-zip-bytes")
		}).Methods(http.MethodGet)
		srv := newServer(t, r)

		var buf bytes.Buffer
		c := New(srv.URL, "tok")
		if err := c.DownloadArchive(context.Background(), "locales/en.json", "main", &buf); err != nil {
			t.Fatalf("DownloadArchive error: %v", err)
		}
		if buf.String() != "PK\x03\x04fake-zip-bytes" {
			t.Fatalf("body = %q", buf.String())
		}
	})

	t.Run("404 is an HTTPError", func(t *testing.T) {
		r := mux.NewRouter()
		r.HandleFunc("/source_files/download_translations", func(w http.ResponseWriter, req *http.Request) {
			http.Error(w, "nothing here", http.StatusNotFound)
		}).Methods(http.MethodGet)
		srv := newServer(t, r)

		var buf bytes.Buffer
		c := New(srv.URL, "tok")
		err := c.DownloadArchive(context.Background(), "x", "y", &buf)
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || !httpErr.IsNotFound() {
			t.Fatalf("err = %v, want 404 HTTPError", err)
		}
	})

	t.Run("requires token", func(t *testing.T) {
		var buf bytes.Buffer
		c := New("http://unused.invalid", "")
		err := c.DownloadArchive(context.Background(), "x", "y", &buf)
		if !errors.Is(err, ErrNoToken) {
			t.Fatalf("err = %v, want ErrNoToken", err)
		}
	})
}

func TestCheckCommand(t *testing.T) {
	t.Parallel()

	c := New("https://translate.example.com/api/v1/", "tok")
	got := c.CheckCommand("locales/en.json", "main")
	want := "sjt status --file locales/en.json --tag main --api-url https://translate.example.com/api/v1"
	if got != want {
		t.Fatalf("CheckCommand = %q, want %q", got, want)
	}
}
