package auth

import (
	"errors"
	"net/http"

	ginsessions "github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/gatekeep/internal/session"
	"github.com/yourusername/gatekeep/internal/users"
)

const (
	// SessionCookieName はセッションクッキーの名前です。
	SessionCookieName = "gk_session"

	sessionKeyUserID = "user_id"
)

// ContextUserKey は、ハンドラー間でログイン済みユーザーを共有するためのキーです。
const ContextUserKey = "auth.user"

// Manager は認証まわりのハンドラーとミドルウェアをまとめた構造体です。
type Manager struct {
	users      users.Repository
	strategy   *Strategy
	bcryptCost int
	cookieOpts ginsessions.Options
}

// NewManager は認証マネージャーを作成します。
// cookieOpts にはセッションストアと同じクッキー発行条件を渡します。
// 破棄用クッキーにも同じ属性を付けるために必要です。
func NewManager(repo users.Repository, bcryptCost int, cookieOpts ginsessions.Options) *Manager {
	return &Manager{
		users:      repo,
		strategy:   NewStrategy(repo),
		bcryptCost: bcryptCost,
		cookieOpts: cookieOpts,
	}
}

// expireSession はセッションに破棄を指示します。
// 発行時と同じクッキー属性のまま MaxAge だけを負にします。
func (m *Manager) expireSession(sess ginsessions.Session) {
	opts := m.cookieOpts
	opts.MaxAge = -1
	sess.Options(opts)
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`

	// プロフィール項目は登録時のみ任意で受け付けます
	Photo string `json:"photo"`
	Name  string `json:"name"`
	Bio   string `json:"bio"`
	Phone string `json:"phone"`
}

// LoadUser はセッションのユーザーIDを解決してコンテキストに載せるミドルウェアを返します。
// ユーザーが既に削除されている場合はセッションを破棄して匿名として続行します。
func (m *Manager) LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := ginsessions.Default(c)
		id, ok := sess.Get(sessionKeyUserID).(string)
		if !ok || id == "" {
			c.Next()
			return
		}

		u, err := m.users.FindByID(c.Request.Context(), id)
		if errors.Is(err, users.ErrNotFound) {
			// 参照先のいないセッションは遅延破棄する
			sess.Clear()
			m.expireSession(sess)
			_ = sess.Save()
			c.Next()
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"message": "failed to load session user",
			})
			return
		}

		c.Set(ContextUserKey, u)
		c.Next()
	}
}

// CurrentUser は GET / のハンドラーです。ログイン中のユーザー、または null を返します。
func (m *Manager) CurrentUser(c *gin.Context) {
	if v, ok := c.Get(ContextUserKey); ok {
		u := v.(*users.User)
		c.JSON(http.StatusOK, gin.H{"user": u.Profile()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": nil})
}

// Register は POST /api/register のハンドラーです。
func (m *Manager) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "email and password are required",
		})
		return
	}

	digest, err := HashPassword(req.Password, m.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		// bcryptは72バイトまでしか見ないため、超過は入力エラーとして返す
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "password is too long",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "failed to register user",
		})
		return
	}

	u := &users.User{
		Email:        req.Email,
		PasswordHash: digest,
		Photo:        req.Photo,
		Name:         req.Name,
		Bio:          req.Bio,
		Phone:        req.Phone,
	}
	if err := m.users.Create(c.Request.Context(), u); err != nil {
		if errors.Is(err, users.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{
				"message": "email already registered",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "failed to register user",
		})
		return
	}

	c.JSON(http.StatusCreated, u.Profile())
}

// Login は POST /api/login のハンドラーです。
// 成功時はセッションIDを再発行してからユーザーIDを紐付けます。
func (m *Manager) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "email and password are required",
		})
		return
	}

	outcome, err := m.strategy.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "authentication failed",
		})
		return
	}
	if !outcome.Success() {
		c.JSON(http.StatusNotFound, gin.H{
			"message": outcome.Reason,
		})
		return
	}

	sess := ginsessions.Default(c)
	sess.Clear()
	session.Rotate(sess)
	sess.Set(sessionKeyUserID, outcome.User.ID.Hex())
	if err := sess.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "failed to save session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": outcome.User.Profile()})
}

// Logout は GET /api/logout のハンドラーです。未ログインでも成功します。
func (m *Manager) Logout(c *gin.Context) {
	sess := ginsessions.Default(c)
	sess.Clear()
	m.expireSession(sess)
	if err := sess.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "failed to clear session",
		})
		return
	}

	c.String(http.StatusOK, "Logged out successfully")
}
