package auth

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/voenmeh-portal/internal/config"
	"github.com/yourusername/voenmeh-portal/internal/users"
)

const (
	SessionCookieName  = "vm_session"
	sessionKeyUserID   = "auth_user_id"
	sessionKeyIssuedAt = "issued_at"
)

var (
	loginWindow      = 15 * time.Minute
	lockDuration     = 10 * time.Minute
	maxLoginAttempts = 5
)

// ContextUserIDKey は、ハンドラー間でログイン済みユーザーIDを共有するためのキーです。
const ContextUserIDKey = "auth.user_id"

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	cfg      *config.Config
	users    users.Repository
	hasher   *PasswordHasher
	lock     sync.Mutex
	attempts map[string]*attemptState
}

// NewManager は認証マネージャーを作成します。
func NewManager(cfg *config.Config, repo users.Repository) *Manager {
	return &Manager{
		cfg:      cfg,
		users:    repo,
		hasher:   NewPasswordHasher(cfg.BcryptCost),
		attempts: make(map[string]*attemptState),
	}
}

type registerRequest struct {
	Email          string `json:"email" binding:"required"`
	Username       string `json:"username" binding:"required"`
	Password       string `json:"password" binding:"required"`
	PasswordRepeat string `json:"passwordRepeat" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register は /api/register のハンドラーです。
// 成功時はユーザーを作成し、そのままログイン状態にします。
func (m *Manager) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Заполните все поля"})
		return
	}

	if !strings.HasSuffix(strings.ToLower(req.Email), m.cfg.AllowedEmailDomain) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Разрешены только email адреса " + m.cfg.AllowedEmailDomain,
		})
		return
	}

	if len(req.Password) < m.cfg.MinPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Пароль должен содержать не менее " + strconv.Itoa(m.cfg.MinPasswordLength) + " символов",
		})
		return
	}

	if req.Password != req.PasswordRepeat {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Пароли не совпадают"})
		return
	}

	ctx := c.Request.Context()

	// 事前チェックはユーザー向けの400を返すための最適化にすぎない。
	// 同時登録のレースはストレージの一意制約が最終的に防ぐ。
	_, err := m.users.GetByEmail(ctx, req.Email)
	if err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Пользователь с таким email уже существует"})
		return
	}
	if !errors.Is(err, users.ErrNotFound) {
		log.Printf("register: email lookup error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при регистрации"})
		return
	}

	hash, err := m.hasher.Hash(req.Password)
	if err != nil {
		log.Printf("register: password hash error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при регистрации"})
		return
	}

	user, err := m.users.Create(ctx, &users.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, users.ErrDuplicateEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Пользователь с таким email уже существует"})
			return
		}
		log.Printf("register: insert error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при регистрации"})
		return
	}

	if !m.openSession(c, user.ID) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Регистрация успешна",
		"user":    userJSON(user),
	})
}

// Login は /api/login のハンドラーです。
func (m *Manager) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Заполните все поля"})
		return
	}

	ip := c.ClientIP()
	if retryAfter := m.checkLock(ip); retryAfter > 0 {
		// Retry-After は秒数またはHTTP-Date形式が推奨されているため秒数で返す
		c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Слишком много попыток входа, попробуйте позже"})
		return
	}

	// 未登録のemailと誤ったパスワードは意図的に同じ応答に畳む
	// （登録済みアドレスの列挙を防ぐため）
	user, err := m.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			m.recordFailure(ip)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Неверный email или пароль"})
			return
		}
		log.Printf("login: email lookup error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при входе"})
		return
	}

	if !m.hasher.Verify(req.Password, user.PasswordHash) {
		m.recordFailure(ip)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Неверный email или пароль"})
		return
	}

	m.resetAttempts(ip)

	if !m.openSession(c, user.ID) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Вход выполнен успешно",
		"user":    userJSON(user),
	})
}

// Logout は /api/logout のハンドラーです。
// セッションが存在しない場合でもエラーにはなりません（冪等）。
func (m *Manager) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		log.Printf("logout: session save error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при выходе"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Выход выполнен успешно"})
}

// Me は /api/me のハンドラーです。RequireAuth の後ろに配置します。
func (m *Manager) Me(c *gin.Context) {
	userID := c.GetString(ContextUserIDKey)

	user, err := m.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			// セッション発行後にユーザー行が消えた場合
			c.JSON(http.StatusNotFound, gin.H{"error": "Пользователь не найден"})
			return
		}
		log.Printf("me: user lookup error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сервера"})
		return
	}

	c.JSON(http.StatusOK, userJSON(user))
}

// openSession はログイン済みセッションを発行します。
// 失敗した場合は500を書き込み、falseを返します。
func (m *Manager) openSession(c *gin.Context, userID string) bool {
	session := sessions.Default(c)
	session.Set(sessionKeyUserID, userID)
	session.Set(sessionKeyIssuedAt, time.Now().Unix())

	if err := session.Save(); err != nil {
		log.Printf("session save error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сервера"})
		return false
	}
	return true
}

func userJSON(u *users.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"username":   u.Username,
		"role":       u.Role,
		"created_at": u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (m *Manager) checkLock(ip string) time.Duration {
	m.lock.Lock()
	defer m.lock.Unlock()

	state, ok := m.attempts[ip]
	if !ok {
		return 0
	}
	now := time.Now()
	if now.After(state.lockedUntil) {
		return 0
	}
	return time.Until(state.lockedUntil)
}

func (m *Manager) recordFailure(ip string) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := time.Now()
	state, ok := m.attempts[ip]
	if !ok || now.Sub(state.firstAttempt) > loginWindow {
		state = &attemptState{firstAttempt: now}
		m.attempts[ip] = state
	}

	state.count++
	if state.count >= maxLoginAttempts {
		state.lockedUntil = now.Add(lockDuration)
		state.count = maxLoginAttempts
	}

	remaining := maxLoginAttempts - state.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (m *Manager) resetAttempts(ip string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.attempts, ip)
}

func readUnix(v interface{}) time.Time {
	switch t := v.(type) {
	case int64:
		return time.Unix(t, 0)
	case int:
		return time.Unix(int64(t), 0)
	case float64:
		return time.Unix(int64(t), 0)
	default:
		return time.Time{}
	}
}
