package auth

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// RequireAuth はセッションを検証するミドルウェアを返します。
// 有効なセッションが無い場合は401で打ち切り、保護対象のハンドラーは呼ばれません。
// 有効な場合は ContextUserIDKey にユーザーIDを設定して次へ進みます。
func (m *Manager) RequireAuth() gin.HandlerFunc {
	ttl := m.cfg.SessionTTL()

	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get(sessionKeyUserID).(string)
		if !ok || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Не авторизован"})
			return
		}

		// 有効期限は発行時刻からの絶対値。利用による延長は行わない。
		issuedAt := readUnix(session.Get(sessionKeyIssuedAt))
		if issuedAt.IsZero() || time.Since(issuedAt) > ttl {
			session.Clear()
			session.Options(sessions.Options{Path: "/", MaxAge: -1})
			_ = session.Save()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Сессия истекла"})
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}
