package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func uploadResume(t *testing.T, h http.Handler, token, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/profile/resume", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestResumeUploadRejectsNonPDF(t *testing.T) {
	mux := newTestAPI(t).mux()
	token := signupUser(t, mux, "cv1@uni.edu")
	rec := uploadResume(t, mux, token, "resume.txt", []byte("plain text"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("txt upload: %d %s", rec.Code, rec.Body.String())
	}
}

func TestResumeUploadRequiresFileField(t *testing.T) {
	mux := newTestAPI(t).mux()
	token := signupUser(t, mux, "cv2@uni.edu")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "no file here")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/profile/resume", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file field: %d", rec.Code)
	}
}

func TestResumeUploadKeepsFileOnParseFailure(t *testing.T) {
	mux := newTestAPI(t).mux()
	token := signupUser(t, mux, "cv3@uni.edu")

	// not a real PDF, so extraction fails but the upload is kept
	rec := uploadResume(t, mux, token, "resume.pdf", []byte("%PDF-garbage"))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ResumeFilePath string `json:"resumeFilePath"`
		ParsingStatus  string `json:"parsingStatus"`
	}
	decodeBody(t, rec, &resp)
	if resp.ParsingStatus != "failed" {
		t.Fatalf("parsingStatus: %q", resp.ParsingStatus)
	}
	if _, err := os.Stat(resp.ResumeFilePath); err != nil {
		t.Fatalf("uploaded file missing: %v", err)
	}

	rec2 := doJSON(t, mux, http.MethodGet, "/profile", token, nil)
	var u struct {
		ResumeFilePath string `json:"resumeFilePath"`
	}
	decodeBody(t, rec2, &u)
	if u.ResumeFilePath != resp.ResumeFilePath {
		t.Fatalf("profile path: %q want %q", u.ResumeFilePath, resp.ResumeFilePath)
	}
}
