package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestSwaggerHandler(t *testing.T) {
	convey.Convey("Given a swagger handler", t, func() {
		ctx := context.Background()
		mux := http.NewServeMux()

		convey.Convey("When registering the swagger handler", func() {
			Register(ctx, mux)

			convey.Convey("Then it should handle /openapi.yaml route", func() {
				req := httptest.NewRequest("GET", "/openapi.yaml", http.NoBody)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)

				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
				convey.So(w.Body.String(), convey.ShouldContainSubstring, "/users/{user_id}/bac")
			})

			convey.Convey("And it should handle /api-docs route", func() {
				req := httptest.NewRequest("GET", "/api-docs", http.NoBody)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)

				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "text/html; charset=utf-8")
				body := w.Body.String()
				convey.So(body, convey.ShouldContainSubstring, `id="operations"`)
				convey.So(body, convey.ShouldContainSubstring, "/users/{user_id}/drinks/{drink_id}")
				convey.So(body, convey.ShouldContainSubstring, `href="/openapi.yaml"`)
				convey.So(body, convey.ShouldNotContainSubstring, "<script")
				convey.So(body, convey.ShouldNotContainSubstring, "https://")
			})
		})

		convey.Convey("When the embedded document is listed", func() {
			title, ops, err := Operations(OpenAPI)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then every route is present in path then method order", func() {
				convey.So(title, convey.ShouldEqual, "baculator")
				var drinkOps []string
				for _, op := range ops {
					if op.Path == "/users/{user_id}/drinks/{drink_id}" {
						drinkOps = append(drinkOps, op.Method)
					}
				}
				convey.So(drinkOps, convey.ShouldResemble, []string{"PUT", "DELETE"})
				convey.So(ops[0].Path, convey.ShouldEqual, "/evaluate")
			})
		})

		convey.Convey("When the document is not YAML", func() {
			_, _, err := Operations([]byte("paths: [unclosed"))

			convey.Convey("Then an error is returned", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the mux is nil", func() {
			convey.Convey("Then Register panics", func() {
				convey.So(func() { Register(ctx, nil) }, convey.ShouldPanic)
			})
		})
	})
}
