package classifier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubClassifier struct {
	prediction Prediction
	err        error
}

func (s stubClassifier) Classify(context.Context, []byte, string) (Prediction, error) {
	return s.prediction, s.err
}

func TestPredictFallsBackToOther(t *testing.T) {
	got := Predict(context.Background(), stubClassifier{err: errors.New("model offline")}, nil, "image/jpeg", nil)
	if got.Label != LabelOther || got.Confidence != 0 {
		t.Fatalf("expected other/0, got %+v", got)
	}

	got = Predict(context.Background(), stubClassifier{prediction: Prediction{Label: "  "}}, nil, "image/jpeg", nil)
	if got.Label != LabelOther {
		t.Fatalf("expected blank label to become other, got %+v", got)
	}
}

func TestPredictClampsConfidence(t *testing.T) {
	got := Predict(context.Background(), stubClassifier{prediction: Prediction{Label: "sewer", Confidence: 140}}, nil, "image/jpeg", nil)
	if got.Label != "sewer" || got.Confidence != 100 {
		t.Fatalf("unexpected prediction %+v", got)
	}
}

func TestHTTPModelClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("image")
		if err != nil {
			http.Error(w, "missing image", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if string(data) != "jpeg-bytes" {
			http.Error(w, "unexpected payload", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"label":"potholes","confidence":91.5}`))
	}))
	defer srv.Close()

	got, err := NewHTTPModel(srv.URL, srv.Client()).Classify(context.Background(), []byte("jpeg-bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Label != "potholes" || got.Confidence != 91.5 {
		t.Fatalf("unexpected prediction %+v", got)
	}
}

func TestHTTPModelNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewHTTPModel(srv.URL, srv.Client()).Classify(context.Background(), []byte("x"), "image/jpeg"); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestParseGeminiVerdict(t *testing.T) {
	labels := DefaultRoutingTable().Labels()

	got, err := parseGeminiVerdict(`{"label":"Garbage","confidence":72}`, labels)
	if err != nil || got.Label != "Garbage" || got.Confidence != 72 {
		t.Fatalf("unexpected verdict %+v err=%v", got, err)
	}

	if _, err := parseGeminiVerdict(`{"label":"volcano","confidence":99}`, labels); err == nil {
		t.Fatal("expected unknown label to be rejected")
	}
	if _, err := parseGeminiVerdict(`not json`, labels); err == nil {
		t.Fatal("expected malformed verdict to be rejected")
	}
}
