package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scoutnotes/internal/adapters/http/api"
	"github.com/okian/scoutnotes/internal/adapters/remote"
	service "github.com/okian/scoutnotes/internal/app"
	"github.com/okian/scoutnotes/internal/domain/draft"
	"github.com/okian/scoutnotes/internal/domain/draftkey"
	"github.com/okian/scoutnotes/internal/domain/rubric"
	"github.com/okian/scoutnotes/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const testSecret = "test-secret"

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats(context.Context) map[string]interface{} {
	return m.stats
}

func newRouter(mode string, svc *service.Service) http.Handler {
	auth, err := api.NewAuthenticator(mode, testSecret)
	So(err, ShouldBeNil)
	stats := &mockStatsProvider{stats: map[string]interface{}{"started": true}}
	r := chi.NewRouter()
	api.NewServer(svc, stats, auth).Register(context.Background(), r)
	return r
}

func startedService() *service.Service {
	svc := service.New(service.WithMaxNamedDrafts(1))
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func do(h http.Handler, method, path, owner, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}
	if owner != "" {
		req.Header.Set(api.HeaderEvaluatorID, owner)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func autosaveBody(sport, film string) (string, string) {
	p := draft.New(sport, film)
	p.SetValue("speed", draft.Numeric(8))
	p.StrengthsText = "reads the game early"
	p.Touch(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	key := draftkey.DeriveAutosaveKey(sport, film)
	raw, err := json.Marshal(draft.FromPayload(key, p))
	So(err, ShouldBeNil)
	return key, string(raw)
}

func errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body.Code
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		svc := startedService()
		defer svc.Stop()
		h := newRouter(api.AuthModeHeader, svc)

		Convey("Then the health endpoint serves metrics", func() {
			w := do(h, http.MethodGet, "/healthz", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint is public", func() {
			w := do(h, http.MethodGet, "/stats", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then draft routes require an owner", func() {
			w := do(h, http.MethodGet, "/v1/drafts", "", "")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(errorCode(w), ShouldEqual, "unauthorized")
		})
	})
}

func TestDrafts_Routes(t *testing.T) {
	Convey("Given an authenticated evaluator", t, func() {
		svc := startedService()
		defer svc.Stop()
		h := newRouter(api.AuthModeHeader, svc)
		key, body := autosaveBody("football", "film-9")
		path := "/v1/drafts/" + key

		Convey("When a draft is put", func() {
			w := do(h, http.MethodPut, path, "ev-1", body)

			Convey("Then it is created and can be read back", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Body.String(), ShouldContainSubstring, "updated_at")

				w = do(h, http.MethodGet, path, "ev-1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var rec draft.Record
				So(json.Unmarshal(w.Body.Bytes(), &rec), ShouldBeNil)
				So(rec.OwnerID, ShouldEqual, "ev-1")
				So(rec.Payload.StrengthsText, ShouldEqual, "reads the game early")
			})

			Convey("Then putting it again reports no change", func() {
				w = do(h, http.MethodPut, path, "ev-1", body)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"unchanged":true`)
			})

			Convey("Then it is listed with filters", func() {
				w = do(h, http.MethodGet, "/v1/drafts?sport=football&mode=autosave", "ev-1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var list []draft.Summary
				So(json.Unmarshal(w.Body.Bytes(), &list), ShouldBeNil)
				So(list, ShouldHaveLength, 1)
				So(list[0].Key, ShouldEqual, key)

				w = do(h, http.MethodGet, "/v1/drafts?mode=named", "ev-1", "")
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
			})

			Convey("Then another evaluator gets 404", func() {
				w = do(h, http.MethodGet, path, "ev-2", "")
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(errorCode(w), ShouldEqual, "not_found")
			})

			Convey("Then the exports render", func() {
				w = do(h, http.MethodGet, path+"/scoring", "ev-1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "football-2026.1")

				w = do(h, http.MethodGet, path+"/report", "ev-1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "text/plain")
				So(w.Body.String(), ShouldContainSubstring, "reads the game early")
			})

			Convey("Then deleting is idempotent", func() {
				So(do(h, http.MethodDelete, path, "ev-1", "").Code, ShouldEqual, http.StatusNoContent)
				So(do(h, http.MethodDelete, path, "ev-1", "").Code, ShouldEqual, http.StatusNoContent)
				So(do(h, http.MethodGet, path, "ev-1", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the request is invalid", func() {
			So(do(h, http.MethodPut, path, "ev-1", "{not json").Code, ShouldEqual, http.StatusBadRequest)

			w := do(h, http.MethodPut, "/v1/drafts/"+draftkey.MintNamedKey(), "ev-1", body)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "key_mismatch")

			w = do(h, http.MethodGet, "/v1/drafts/draft-1", "ev-1", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)

			w = do(h, http.MethodDelete, "/v1/drafts/draft-1", "ev-1", "")
			So(errorCode(w), ShouldEqual, "invalid_key")

			w = do(h, http.MethodGet, "/v1/drafts?mode=other", "ev-1", "")
			So(errorCode(w), ShouldEqual, "invalid_mode")
		})

		Convey("When the named draft cap is reached", func() {
			for i := 0; i < 2; i++ {
				p := draft.New("football", "")
				p.Title = "session"
				p.Touch(time.Now())
				in := draft.FromPayload(draftkey.MintNamedKey(), p)
				raw, _ := json.Marshal(in)
				w := do(h, http.MethodPut, "/v1/drafts/"+in.Key, "ev-1", string(raw))
				if i == 0 {
					So(w.Code, ShouldEqual, http.StatusCreated)
					continue
				}
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(errorCode(w), ShouldEqual, "draft_limit")
			}
		})
	})
}

func TestRubrics_Route(t *testing.T) {
	Convey("Given an authenticated evaluator", t, func() {
		svc := startedService()
		defer svc.Stop()
		h := newRouter(api.AuthModeHeader, svc)

		Convey("Then a configured sport returns its form", func() {
			w := do(h, http.MethodGet, "/v1/rubrics/football", "ev-1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var form rubric.Form
			So(json.Unmarshal(w.Body.Bytes(), &form), ShouldBeNil)
			So(form.Validate(), ShouldBeNil)
			So(form.Sport, ShouldEqual, "football")
		})

		Convey("Then an unknown sport is not configured", func() {
			w := do(h, http.MethodGet, "/v1/rubrics/curling", "ev-1", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "not_configured")
		})
	})
}

func TestAuthenticator_JWT(t *testing.T) {
	sign := func(secret string, claims jwt.RegisteredClaims, method jwt.SigningMethod) string {
		tok, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
		So(err, ShouldBeNil)
		return tok
	}

	Convey("Given an authenticator in jwt mode", t, func() {
		auth, err := api.NewAuthenticator(api.AuthModeJWT, testSecret)
		So(err, ShouldBeNil)

		var seen string
		h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = api.OwnerID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))
		call := func(token string) int {
			req := httptest.NewRequest(http.MethodGet, "/v1/drafts", http.NoBody)
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			return w.Code
		}
		valid := jwt.RegisteredClaims{
			Subject:   "ev-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}

		Convey("Then a signed token yields its subject as owner", func() {
			So(call(sign(testSecret, valid, jwt.SigningMethodHS256)), ShouldEqual, http.StatusOK)
			So(seen, ShouldEqual, "ev-7")
		})

		Convey("Then bad tokens are rejected", func() {
			So(call(""), ShouldEqual, http.StatusUnauthorized)
			So(call(sign("other", valid, jwt.SigningMethodHS256)), ShouldEqual, http.StatusUnauthorized)
			So(call(sign(testSecret, valid, jwt.SigningMethodHS512)), ShouldEqual, http.StatusUnauthorized)

			expired := valid
			expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
			So(call(sign(testSecret, expired, jwt.SigningMethodHS256)), ShouldEqual, http.StatusUnauthorized)

			anonymous := valid
			anonymous.Subject = ""
			So(call(sign(testSecret, anonymous, jwt.SigningMethodHS256)), ShouldEqual, http.StatusUnauthorized)
			So(seen, ShouldBeEmpty)
		})
	})

	Convey("Given invalid authenticator settings", t, func() {
		_, err := api.NewAuthenticator(api.AuthModeJWT, "")
		So(errors.Is(err, api.ErrAuthConfig), ShouldBeTrue)
		_, err = api.NewAuthenticator("basic", "")
		So(errors.Is(err, api.ErrAuthConfig), ShouldBeTrue)
	})
}

func TestRemoteClient_AgainstServer(t *testing.T) {
	Convey("Given the remote client pointed at a live server", t, func() {
		svc := startedService()
		defer svc.Stop()
		srv := httptest.NewServer(newRouter(api.AuthModeHeader, svc))
		defer srv.Close()

		client, err := remote.New(srv.URL, remote.WithEvaluatorID("ev-1"))
		So(err, ShouldBeNil)
		ctx := context.Background()

		p := draft.New("basketball", "film-3")
		p.SetValue("shooting", draft.Numeric(4))
		p.Touch(time.Now())
		in := draft.FromPayload(draftkey.DeriveAutosaveKey("basketball", "film-3"), p)

		Convey("Then a full round trip works", func() {
			at, err := client.Upsert(ctx, in)
			So(err, ShouldBeNil)
			So(at.IsZero(), ShouldBeFalse)

			rec, err := client.FetchByKey(ctx, in.Key)
			So(err, ShouldBeNil)
			So(draft.SameContent(rec.Payload, p), ShouldBeTrue)

			list, err := client.List(ctx, draft.ListFilter{Sport: "basketball"})
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 1)

			form, err := client.ActiveForm(ctx, "basketball")
			So(err, ShouldBeNil)
			So(form.Sport, ShouldEqual, "basketball")

			So(client.Remove(ctx, in.Key), ShouldBeNil)
			_, err = client.FetchByKey(ctx, in.Key)
			So(errors.Is(err, remote.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then a missing form maps to not configured", func() {
			_, err := client.ActiveForm(ctx, "curling")
			So(errors.Is(err, rubric.ErrNotConfigured), ShouldBeTrue)
		})
	})
}
