// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler
// integration tests. The upstream API is faked with an httptest server;
// tests needing PostgreSQL or Valkey are skipped when unavailable.
package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"admanager/internal/database"
	"admanager/internal/kijiji"
	"admanager/internal/middleware"
	"admanager/internal/render"
	"admanager/internal/session"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "admanager")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "admanager")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		// Clean up test session and metadata cache keys.
		for _, pattern := range []string{"session:*", "meta:*"} {
			keys, _ := client.Keys(ctx, pattern).Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		}
		client.Close()
	})

	return client
}

// upstreamClient starts a fake upstream API and returns a client pointed
// at it.
func upstreamClient(t *testing.T, handler http.Handler) *kijiji.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return kijiji.NewClient(kijiji.Config{
		BaseURL:   srv.URL,
		UploadURL: srv.URL + "/upload",
	})
}

// testRenderer parses the embedded templates with flashes wired to the
// given session store.
func testRenderer(t *testing.T, sessions *session.Store) *render.Renderer {
	t.Helper()
	renderer, err := render.New(sessions)
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	return renderer
}

// testSessionData returns session data for the fake upstream's test user.
func testSessionData() *session.Data {
	return &session.Data{
		UserID:      "1001",
		Token:       "token-abc",
		Email:       "test@admanager.local",
		DisplayName: "Test User",
	}
}

// newSessionRequest builds a request carrying a live session: the entry is
// created in the store, its cookie attached, and the data placed in the
// context the way LoadSession would.
func newSessionRequest(t *testing.T, sessions *session.Store, data *session.Data, r *http.Request) *http.Request {
	t.Helper()

	rec := httptest.NewRecorder()
	if _, err := sessions.Create(context.Background(), rec, data); err != nil {
		t.Fatalf("session create: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r.WithContext(context.WithValue(r.Context(), middleware.SessionKey, data))
}

// followUpRequest builds a second request on the same session: the cookies
// carry over and the context gets the data currently in the store, the way
// LoadSession would see it.
func followUpRequest(t *testing.T, sessions *session.Store, prev, r *http.Request) *http.Request {
	t.Helper()

	for _, c := range prev.Cookies() {
		r.AddCookie(c)
	}
	data, err := sessions.Get(context.Background(), r)
	if err != nil || data == nil {
		t.Fatalf("session lookup: data=%v err=%v", data, err)
	}
	return r.WithContext(context.WithValue(r.Context(), middleware.SessionKey, data))
}

// multipartForm encodes plain values as a multipart body, the encoding the
// posting form submits with.
func multipartForm(t *testing.T, values url.Values) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, vals := range values {
		for _, v := range vals {
			if err := mw.WriteField(key, v); err != nil {
				t.Fatalf("multipart field %s: %v", key, err)
			}
		}
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

// withChiURLParam adds a chi URL parameter to a request.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// pendingFlashes reads the flashes waiting in the request's session.
func pendingFlashes(t *testing.T, sessions *session.Store, r *http.Request) []session.Flash {
	t.Helper()
	return sessions.PopFlashes(context.Background(), r)
}

// Upstream XML fixtures, shaped like the live API's responses.

const loginXML = `<?xml version="1.0" encoding="UTF-8"?>
<user:user-logins xmlns:user="http://www.ebayclassifiedsgroup.com/schema/user/v1">
  <user:user-login>
    <user:id>1001</user:id>
    <user:email>test@admanager.local</user:email>
    <user:token>token-abc</user:token>
  </user:user-login>
</user:user-logins>`

const profileXML = `<?xml version="1.0" encoding="UTF-8"?>
<user:user-profile xmlns:user="http://www.ebayclassifiedsgroup.com/schema/user/v1">
  <user:user-display-name>Test User</user:user-display-name>
</user:user-profile>`

const adsXML = `<?xml version="1.0" encoding="UTF-8"?>
<ad:ads xmlns:ad="http://www.ebayclassifiedsgroup.com/schema/ad/v1" xmlns:types="http://www.ebayclassifiedsgroup.com/schema/types/v1" xmlns:pic="http://www.ebayclassifiedsgroup.com/schema/picture/v1">
  <ad:ad id="100">
    <ad:title>Winter tires</ad:title>
    <ad:ad-status><ad:value>ACTIVE</ad:value></ad:ad-status>
    <ad:price><types:amount>150.00</types:amount></ad:price>
    <ad:view-ad-count>12</ad:view-ad-count>
    <ad:rank>21</ad:rank>
    <ad:start-date-time>2026-08-01T10:00:00.000Z</ad:start-date-time>
    <ad:link rel="self-public-website" href="https://www.kijiji.ca/v-view-details.html?adId=100"/>
    <pic:pictures>
      <pic:picture>
        <pic:link rel="thumbnail" href="https://img.example/100?rule=kijijica-64-jpg"/>
      </pic:picture>
    </pic:pictures>
  </ad:ad>
  <ad:ad id="101">
    <ad:title>Snow blower</ad:title>
    <ad:ad-status><ad:value>ACTIVE</ad:value></ad:ad-status>
    <ad:view-ad-count>3</ad:view-ad-count>
    <ad:rank>2</ad:rank>
    <ad:start-date-time>2026-08-15T09:30:00.000Z</ad:start-date-time>
  </ad:ad>
</ad:ads>`

const adXML = `<?xml version="1.0" encoding="UTF-8"?>
<ad:ad xmlns:ad="http://www.ebayclassifiedsgroup.com/schema/ad/v1" xmlns:types="http://www.ebayclassifiedsgroup.com/schema/types/v1" xmlns:attr="http://www.ebayclassifiedsgroup.com/schema/attribute/v1" xmlns:pic="http://www.ebayclassifiedsgroup.com/schema/picture/v1" id="100">
  <ad:title>Winter tires</ad:title>
  <ad:description>Four studded tires on rims.</ad:description>
  <ad:ad-status><ad:value>ACTIVE</ad:value></ad:ad-status>
  <ad:price>
    <types:price-type><types:value>SPECIFIED_AMOUNT</types:value></types:price-type>
    <types:amount>150.00</types:amount>
  </ad:price>
  <ad:view-ad-count>12</ad:view-ad-count>
  <ad:start-date-time>2026-08-01T10:00:00.000Z</ad:start-date-time>
  <attr:attributes>
    <attr:attribute type="ENUM" localized-label="Condition" name="condition">
      <attr:value localized-label="Used">used</attr:value>
    </attr:attribute>
  </attr:attributes>
  <pic:pictures>
    <pic:picture>
      <pic:link rel="normal" href="https://img.example/100?rule=kijijica-300-jpg"/>
      <pic:link rel="thumbnail" href="https://img.example/100?rule=kijijica-64-jpg"/>
    </pic:picture>
  </pic:pictures>
</ad:ad>`

const categoriesXML = `<?xml version="1.0" encoding="UTF-8"?>
<cat:categories xmlns:cat="http://www.ebayclassifiedsgroup.com/schema/category/v1">
  <cat:category id="0">
    <cat:id-name>Categories</cat:id-name>
    <cat:children-count>2</cat:children-count>
    <cat:category id="10">
      <cat:id-name>Buy and Sell</cat:id-name>
      <cat:children-count>1</cat:children-count>
      <cat:category id="12">
        <cat:id-name>Tires</cat:id-name>
        <cat:children-count>0</cat:children-count>
      </cat:category>
    </cat:category>
    <cat:category id="27">
      <cat:id-name>Cars and Vehicles</cat:id-name>
      <cat:children-count>0</cat:children-count>
    </cat:category>
  </cat:category>
</cat:categories>`

const locationsXML = `<?xml version="1.0" encoding="UTF-8"?>
<loc:locations xmlns:loc="http://www.ebayclassifiedsgroup.com/schema/location/v1">
  <loc:location id="0">
    <loc:localized-name>Canada</loc:localized-name>
    <loc:location id="9003">
      <loc:localized-name>Ontario</loc:localized-name>
      <loc:location id="1700185">
        <loc:localized-name>Ottawa</loc:localized-name>
      </loc:location>
    </loc:location>
  </loc:location>
</loc:locations>`

const metadataXML = `<?xml version="1.0" encoding="UTF-8"?>
<ad:ad xmlns:ad="http://www.ebayclassifiedsgroup.com/schema/ad/v1" xmlns:attr="http://www.ebayclassifiedsgroup.com/schema/attribute/v1" xmlns:types="http://www.ebayclassifiedsgroup.com/schema/types/v1">
  <ad:ad-type>
    <ad:supported-value localized-label="Offering">OFFER</ad:supported-value>
    <ad:supported-value localized-label="Wanted">WANTED</ad:supported-value>
  </ad:ad-type>
  <attr:attributes>
    <attr:attribute name="condition" type="ENUM" localized-label="Condition" write="required">
      <attr:supported-value localized-label="New">new</attr:supported-value>
      <attr:supported-value localized-label="Used">used</attr:supported-value>
    </attr:attribute>
    <attr:attribute name="size" type="STRING" localized-label="Size" write="supported"/>
  </attr:attributes>
</ad:ad>`

const postedAdXML = `<?xml version="1.0" encoding="UTF-8"?>
<ad:ad xmlns:ad="http://www.ebayclassifiedsgroup.com/schema/ad/v1" id="555">
  <ad:title>Winter tires</ad:title>
</ad:ad>`

const conversationsXML = `<?xml version="1.0" encoding="UTF-8"?>
<user:user-conversations xmlns:user="http://www.ebayclassifiedsgroup.com/schema/user/v1">
  <user:user-conversation>
    <user:id>9001</user:id>
    <user:ad-id>100</user:ad-id>
    <user:ad-subject>Winter tires</user:ad-subject>
    <user:ad-owner-id>1001</user:ad-owner-id>
    <user:ad-owner-name>Test User</user:ad-owner-name>
    <user:ad-replier-id>2002</user:ad-replier-id>
    <user:ad-replier-name>Buyer Bob</user:ad-replier-name>
    <user:last-message-post-time-stamp>2026-08-20T18:00:00.000Z</user:last-message-post-time-stamp>
  </user:user-conversation>
</user:user-conversations>`

const conversationXML = `<?xml version="1.0" encoding="UTF-8"?>
<user:user-conversation xmlns:user="http://www.ebayclassifiedsgroup.com/schema/user/v1" xmlns:types="http://www.ebayclassifiedsgroup.com/schema/types/v1">
  <user:id>9001</user:id>
  <user:ad-id>100</user:ad-id>
  <user:ad-subject>Winter tires</user:ad-subject>
  <user:ad-owner-id>1001</user:ad-owner-id>
  <user:ad-owner-email>test@admanager.local</user:ad-owner-email>
  <user:ad-owner-name>Test User</user:ad-owner-name>
  <user:ad-replier-id>2002</user:ad-replier-id>
  <user:ad-replier-email>bob@example.net</user:ad-replier-email>
  <user:ad-replier-name>Buyer Bob</user:ad-replier-name>
  <user:user-message>
    <user:msg-content>Are these still available?</user:msg-content>
    <user:post-time-stamp>2026-08-20T18:00:00.000Z</user:post-time-stamp>
    <user:msg-direction><types:value>TO_OWNER</types:value></user:msg-direction>
  </user:user-message>
</user:user-conversation>`

const deletedConversationXML = `<?xml version="1.0" encoding="UTF-8"?>
<user:user-conversation xmlns:user="http://www.ebayclassifiedsgroup.com/schema/user/v1">
  <user:id>9002</user:id>
  <user:ad-id>100</user:ad-id>
  <user:ad-subject>Deleted Ad</user:ad-subject>
  <user:ad-owner-id>null</user:ad-owner-id>
</user:user-conversation>`
