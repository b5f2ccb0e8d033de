// Package session はサーバーサイドのセッションストアを提供します。
// クッキーにはsecurecookieで署名された不透明なセッションIDのみを載せ、
// セッションの内容はバックエンド（プロセス内メモリまたはRedis）に保持します。
package session

import (
	"bytes"
	"context"
	"encoding/base32"
	"encoding/gob"
	"errors"
	"net/http"
	"strings"
	"time"

	ginsessions "github.com/gin-contrib/sessions"
	"github.com/gorilla/securecookie"
	gsessions "github.com/gorilla/sessions"
)

const idLength = 32

// backend はセッション内容の保存先の契約です。
// load は該当IDが存在しない場合に (nil, nil) を返します。
type backend interface {
	save(ctx context.Context, id string, data []byte, ttl time.Duration) error
	load(ctx context.Context, id string) ([]byte, error)
	delete(ctx context.Context, id string) error
}

// Store は gin-contrib/sessions の Store 契約を満たすセッションストアです。
type Store struct {
	backend backend
	codecs  []securecookie.Codec
	opts    *gsessions.Options
	ttl     time.Duration
}

// ストア契約を満たしていることをコンパイル時に確認する
var _ ginsessions.Store = (*Store)(nil)

func newStore(b backend, ttl time.Duration, keyPairs ...[]byte) *Store {
	return &Store{
		backend: b,
		codecs:  securecookie.CodecsFromPairs(keyPairs...),
		opts: &gsessions.Options{
			Path:   "/",
			MaxAge: int(ttl.Seconds()),
		},
		ttl: ttl,
	}
}

// Options はクッキーの属性を設定します。
func (s *Store) Options(options ginsessions.Options) {
	s.opts = &gsessions.Options{
		Path:     options.Path,
		Domain:   options.Domain,
		MaxAge:   options.MaxAge,
		Secure:   options.Secure,
		HttpOnly: options.HttpOnly,
		SameSite: options.SameSite,
	}
}

// Get はリクエスト内でキャッシュされたセッションを返します。
func (s *Store) Get(r *http.Request, name string) (*gsessions.Session, error) {
	return gsessions.GetRegistry(r).Get(s, name)
}

// New はクッキーからセッションIDを復号し、バックエンドから内容を読み込みます。
// クッキーが無い・復号できない・バックエンドに無い場合は新規セッションを返します。
func (s *Store) New(r *http.Request, name string) (*gsessions.Session, error) {
	session := gsessions.NewSession(s, name)
	opts := *s.opts
	session.Options = &opts
	session.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	if err := securecookie.DecodeMulti(name, c.Value, &session.ID, s.codecs...); err != nil {
		session.ID = ""
		return session, nil
	}

	data, err := s.backend.load(r.Context(), session.ID)
	if err != nil {
		return session, err
	}
	if data == nil {
		return session, nil
	}
	if err := deserialize(data, &session.Values); err != nil {
		return session, err
	}
	session.IsNew = false
	return session, nil
}

// Save はセッションをバックエンドに書き込み、署名済みIDをクッキーとして発行します。
// MaxAgeが0以下の場合はセッションを破棄します（存在しないIDの破棄もエラーになりません）。
func (s *Store) Save(r *http.Request, w http.ResponseWriter, session *gsessions.Session) error {
	if session.Options.MaxAge <= 0 {
		if session.ID != "" {
			if err := s.backend.delete(r.Context(), session.ID); err != nil {
				return err
			}
		}
		http.SetCookie(w, gsessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		id, err := generateID()
		if err != nil {
			return err
		}
		session.ID = id
	}

	data, err := serialize(session.Values)
	if err != nil {
		return err
	}
	if err := s.backend.save(r.Context(), session.ID, data, s.ttl); err != nil {
		return err
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, gsessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

func generateID() (string, error) {
	key := securecookie.GenerateRandomKey(idLength)
	if key == nil {
		return "", errors.New("session: failed to generate random session id")
	}
	return strings.TrimRight(base32.StdEncoding.EncodeToString(key), "="), nil
}

func serialize(values map[interface{}]interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := gob.NewEncoder(buf).Encode(values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserialize(data []byte, values *map[interface{}]interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(values)
}
