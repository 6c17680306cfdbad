// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"admanager/internal/repost"
	"admanager/internal/session"
	"admanager/internal/store"
)

// adsTestEnv bundles the dependencies of the Ads handler group.
type adsTestEnv struct {
	Sessions *session.Store
	Records  *store.AdStore
	Ads      *Ads
}

func newAdsTestEnv(t *testing.T, upstream http.Handler, repostDelay time.Duration) *adsTestEnv {
	t.Helper()

	db := testDB(t)
	vk := testValkeyClient(t)

	sessions := session.NewStore(vk)
	renderer := testRenderer(t, sessions)
	api := upstreamClient(t, upstream)
	records := store.NewAdStore(db)

	t.Cleanup(func() {
		db.Exec("DELETE FROM ad_records WHERE user_id = $1", "1001")
	})

	scheduler := repost.NewScheduler(api, records, 1, 8)
	t.Cleanup(scheduler.Shutdown)

	return &adsTestEnv{
		Sessions: sessions,
		Records:  records,
		Ads:      NewAds(renderer, sessions, api, records, scheduler, repostDelay),
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestHomeListsAds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/1001/ads", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(adsXML))
	})
	env := newAdsTestEnv(t, mux, time.Minute)

	// One of the two listed ads has a stored payload.
	if _, err := env.Records.Save("1001", "100", "<ad:ad/>"); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	req := newSessionRequest(t, env.Sessions, testSessionData(), httptest.NewRequest("GET", "/", nil))
	w := httptest.NewRecorder()
	env.Ads.Home(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"Winter tires",
		"Snow blower",
		"https://img.example/100?rule=kijijica-64-jpg",
		"https://www.kijiji.ca/v-view-details.html?adId=100",
		"page 2", // rank 21 lands on public page 2
	} {
		if !strings.Contains(body, want) {
			t.Errorf("home page missing %q", want)
		}
	}
	// Only the ad with a stored payload offers a repost action.
	if got := strings.Count(body, "/repost/"); got != 1 {
		t.Errorf("repost actions: got %d, want 1", got)
	}
}

func TestShowAd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/1001/ads/100", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(adXML))
	})
	env := newAdsTestEnv(t, mux, time.Minute)

	req := newSessionRequest(t, env.Sessions, testSessionData(), httptest.NewRequest("GET", "/ad/100", nil))
	req = withChiURLParam(req, "id", "100")
	w := httptest.NewRecorder()
	env.Ads.Show(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Winter tires", "Four studded tires on rims.", "Condition", "used"} {
		if !strings.Contains(body, want) {
			t.Errorf("ad page missing %q", want)
		}
	}
}

func TestDeleteAdFlow(t *testing.T) {
	var deleted atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /users/1001/ads/100", func(w http.ResponseWriter, r *http.Request) {
		deleted.Store(true)
		w.WriteHeader(http.StatusNoContent)
	})
	env := newAdsTestEnv(t, mux, time.Minute)

	if _, err := env.Records.Save("1001", "100", "<ad:ad/>"); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	req := newSessionRequest(t, env.Sessions, testSessionData(), httptest.NewRequest("POST", "/delete/100", nil))
	req = withChiURLParam(req, "id", "100")
	w := httptest.NewRecorder()
	env.Ads.Delete(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want 303", w.Code)
	}
	if !deleted.Load() {
		t.Error("upstream delete was not called")
	}

	// The stored payload goes with the ad.
	rec, err := env.Records.Find("1001", "100")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec != nil {
		t.Error("stored record should be deleted with the ad")
	}

	flashes := pendingFlashes(t, env.Sessions, req)
	if len(flashes) != 1 || flashes[0].Type != "success" {
		t.Errorf("flashes: got %+v, want one success", flashes)
	}
}

func TestDeleteAdUpstreamFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /users/1001/ads/100", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(authErrorXML))
	})
	env := newAdsTestEnv(t, mux, time.Minute)

	if _, err := env.Records.Save("1001", "100", "<ad:ad/>"); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	req := newSessionRequest(t, env.Sessions, testSessionData(), httptest.NewRequest("POST", "/delete/100", nil))
	req = withChiURLParam(req, "id", "100")
	w := httptest.NewRecorder()
	env.Ads.Delete(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want 303", w.Code)
	}

	// A failed upstream delete must leave the stored payload alone.
	rec, err := env.Records.Find("1001", "100")
	if err != nil || rec == nil {
		t.Errorf("record should survive a failed delete, got rec=%v err=%v", rec, err)
	}

	flashes := pendingFlashes(t, env.Sessions, req)
	if len(flashes) != 1 || flashes[0].Type != "error" {
		t.Errorf("flashes: got %+v, want one error", flashes)
	}
}

func TestRepostNoStoredPayload(t *testing.T) {
	env := newAdsTestEnv(t, http.NewServeMux(), time.Minute)

	req := newSessionRequest(t, env.Sessions, testSessionData(), httptest.NewRequest("POST", "/repost/100", nil))
	req = withChiURLParam(req, "id", "100")
	w := httptest.NewRecorder()
	env.Ads.Repost(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want 303", w.Code)
	}
	flashes := pendingFlashes(t, env.Sessions, req)
	if len(flashes) != 1 || flashes[0].Type != "error" {
		t.Errorf("flashes: got %+v, want one error", flashes)
	}
}

func TestRepostFlow(t *testing.T) {
	var posted atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/1001/ads/100", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(adXML))
	})
	mux.HandleFunc("DELETE /users/1001/ads/100", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /users/1001/ads", func(w http.ResponseWriter, r *http.Request) {
		posted.Store(true)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(postedAdXML))
	})
	env := newAdsTestEnv(t, mux, 10*time.Millisecond)

	if _, err := env.Records.Save("1001", "100", adXML); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	req := newSessionRequest(t, env.Sessions, testSessionData(), httptest.NewRequest("POST", "/repost/100", nil))
	req = withChiURLParam(req, "id", "100")
	w := httptest.NewRecorder()
	env.Ads.Repost(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want 303", w.Code)
	}

	// The background cycle reposts under the new id.
	waitFor(t, func() bool { return posted.Load() })
	waitFor(t, func() bool {
		rec, err := env.Records.Find("1001", "555")
		return err == nil && rec != nil
	})

	rec, err := env.Records.Find("1001", "100")
	if err != nil {
		t.Fatalf("find old record: %v", err)
	}
	if rec != nil {
		t.Error("old record should be gone after repost")
	}
}

func TestManualPostSubmit(t *testing.T) {
	var received []byte
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/1001/ads", func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(postedAdXML))
	})
	env := newAdsTestEnv(t, mux, time.Minute)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("payload", "ad.xml")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(adXML))
	mw.Close()

	req := httptest.NewRequest("POST", "/post/manual", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = newSessionRequest(t, env.Sessions, testSessionData(), req)
	w := httptest.NewRecorder()
	env.Ads.ManualPostSubmit(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want 303", w.Code)
	}
	if !strings.Contains(string(received), "Winter tires") {
		t.Error("upstream should receive the uploaded payload")
	}

	rec, err := env.Records.Find("1001", "555")
	if err != nil || rec == nil {
		t.Fatalf("posted payload should be recorded, got rec=%v err=%v", rec, err)
	}
}

func TestManualPostRejectsMalformedXML(t *testing.T) {
	env := newAdsTestEnv(t, http.NewServeMux(), time.Minute)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("payload", "ad.xml")
	part.Write([]byte("<ad:ad><unclosed>"))
	mw.Close()

	req := httptest.NewRequest("POST", "/post/manual", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = newSessionRequest(t, env.Sessions, testSessionData(), req)
	w := httptest.NewRecorder()
	env.Ads.ManualPostSubmit(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want 303", w.Code)
	}
	flashes := pendingFlashes(t, env.Sessions, req)
	if len(flashes) != 1 || flashes[0].Type != "error" {
		t.Errorf("flashes: got %+v, want one error", flashes)
	}
}
