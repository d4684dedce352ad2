package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"

	"dubber/internal/pkg/ctxutil"
	"dubber/internal/pkg/jwt"
)

func TestAuth(t *testing.T) {
	Convey("Auth 校验 Bearer token", t, func() {
		gin.SetMode(gin.TestMode)
		jwtUtil := jwt.NewJWT("secret", "dubber", time.Hour)

		var seenUser string
		r := gin.New()
		r.Use(RequestID(), Auth(jwtUtil))
		r.GET("/me", func(c *gin.Context) {
			seenUser, _ = ctxutil.GetUserID(c.Request.Context())
			c.String(http.StatusOK, seenUser)
		})

		do := func(header string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			return w
		}

		Convey("合法 token 注入用户ID", func() {
			token, err := jwtUtil.GenerateToken("u1")
			So(err, ShouldBeNil)
			w := do("Bearer " + token)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(seenUser, ShouldEqual, "u1")
			So(w.Header().Get(HeaderRequestID), ShouldNotBeEmpty)
		})

		Convey("缺少 header", func() {
			So(do("").Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("格式错误", func() {
			So(do("Token abc").Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("其他密钥签发的 token", func() {
			other, _ := jwt.NewJWT("other", "dubber", time.Hour).GenerateToken("u1")
			So(do("Bearer "+other).Code, ShouldEqual, http.StatusUnauthorized)
		})
	})
}

func TestRequestID(t *testing.T) {
	Convey("RequestID 沿用客户端传入的ID", t, func() {
		gin.SetMode(gin.TestMode)
		r := gin.New()
		r.Use(RequestID())
		r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextKeyRequestID)) })

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-42")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		So(w.Body.String(), ShouldEqual, "req-42")
		So(w.Header().Get(HeaderRequestID), ShouldEqual, "req-42")
	})
}

func TestRecoveryAndCORS(t *testing.T) {
	Convey("Recovery 返回 500，CORS 处理预检请求", t, func() {
		gin.SetMode(gin.TestMode)
		r := gin.New()
		r.Use(Recovery(), CORS())
		r.GET("/panic", func(c *gin.Context) { panic("boom") })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
		So(w.Code, ShouldEqual, http.StatusInternalServerError)
		So(w.Body.String(), ShouldContainSubstring, "50000")

		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/panic", nil))
		So(w.Code, ShouldEqual, http.StatusNoContent)
		So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
	})
}
