// Package session は Redis をバックエンドとするサーバーサイドセッションストアを提供します。
// gin-contrib/sessions の Store インターフェースを実装し、クッキーには
// securecookie で署名したセッションIDだけを載せます。
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	ginsessions "github.com/gin-contrib/sessions"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	gsessions "github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "session:"

	// rotateKey はログイン時のID再発行を次回 Save に指示するマーカーです。
	// 永続化される前に Save が取り除きます。
	rotateKey = "_rotate"
)

// Client は RedisStore が必要とする Redis コマンドの部分集合です。
// *redis.Client がそのまま満たします。
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore はセッション値を Redis に、セッションIDを署名付きクッキーに保存します。
type RedisStore struct {
	client Client
	codecs []securecookie.Codec
	opts   *gsessions.Options
}

// NewRedisStore は RedisStore を作成します。
// ttl はセッションの有効期限で、クッキーの MaxAge と Redis の TTL の両方に使われます。
func NewRedisStore(client Client, secret []byte, ttl time.Duration) *RedisStore {
	store := &RedisStore{
		client: client,
		codecs: securecookie.CodecsFromPairs(secret),
		opts: &gsessions.Options{
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			HttpOnly: true,
		},
	}
	store.setCodecMaxAge(store.opts.MaxAge)
	return store
}

// Rotate は次の保存時に新しいセッションIDを発行するよう指示します。
// ログイン成功時に呼ぶことでセッション固定攻撃を防ぎます。
func Rotate(s ginsessions.Session) {
	s.Set(rotateKey, true)
}

// Options はクッキーの発行条件を設定します（gin-contrib/sessions の Store 契約）。
func (s *RedisStore) Options(opts ginsessions.Options) {
	s.opts = &gsessions.Options{
		Path:     opts.Path,
		Domain:   opts.Domain,
		MaxAge:   opts.MaxAge,
		Secure:   opts.Secure,
		HttpOnly: opts.HttpOnly,
		SameSite: opts.SameSite,
	}
	s.setCodecMaxAge(opts.MaxAge)
}

// Get はリクエスト単位のレジストリ経由でセッションを返します。
func (s *RedisStore) Get(r *http.Request, name string) (*gsessions.Session, error) {
	return gsessions.GetRegistry(r).Get(s, name)
}

// New はクッキーからセッションを復元します。
// クッキーが無い・署名が不正・Redisに記録が無い場合は新規の匿名セッションになります。
func (s *RedisStore) New(r *http.Request, name string) (*gsessions.Session, error) {
	sess := gsessions.NewSession(s, name)
	opts := *s.opts
	sess.Options = &opts
	sess.IsNew = true

	cookie, err := r.Cookie(name)
	if err != nil {
		return sess, nil
	}

	var id string
	if err := securecookie.DecodeMulti(name, cookie.Value, &id, s.codecs...); err != nil {
		return sess, nil
	}
	sess.ID = id

	found, err := s.load(r.Context(), sess)
	if err != nil {
		return sess, err
	}
	sess.IsNew = !found
	return sess, nil
}

// Save はセッションを Redis に書き込み、署名付きIDクッキーを発行します。
// MaxAge が0以下の場合はセッションを破棄します。
func (s *RedisStore) Save(r *http.Request, w http.ResponseWriter, sess *gsessions.Session) error {
	if sess.Options.MaxAge <= 0 {
		if err := s.destroy(r.Context(), sess); err != nil {
			return err
		}
		http.SetCookie(w, gsessions.NewCookie(sess.Name(), "", sess.Options))
		return nil
	}

	if _, rotate := sess.Values[rotateKey]; rotate || sess.ID == "" {
		delete(sess.Values, rotateKey)
		if err := s.destroy(r.Context(), sess); err != nil {
			return err
		}
		sess.ID = uuid.NewString()
	}

	if err := s.persist(r.Context(), sess); err != nil {
		return err
	}

	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("session: failed to encode cookie: %w", err)
	}
	http.SetCookie(w, gsessions.NewCookie(sess.Name(), encoded, sess.Options))
	return nil
}

func (s *RedisStore) load(ctx context.Context, sess *gsessions.Session) (bool, error) {
	data, err := s.client.Get(ctx, key(sess.ID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session: load failed: %w", err)
	}

	values, err := decodeValues(data)
	if err != nil {
		return false, err
	}
	sess.Values = values
	return true, nil
}

func (s *RedisStore) persist(ctx context.Context, sess *gsessions.Session) error {
	data, err := encodeValues(sess.Values)
	if err != nil {
		return err
	}

	ttl := time.Duration(sess.Options.MaxAge) * time.Second
	if err := s.client.Set(ctx, key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("session: persist failed: %w", err)
	}
	return nil
}

func (s *RedisStore) destroy(ctx context.Context, sess *gsessions.Session) error {
	if sess.ID == "" {
		return nil
	}
	if err := s.client.Del(ctx, key(sess.ID)).Err(); err != nil {
		return fmt.Errorf("session: destroy failed: %w", err)
	}
	return nil
}

func (s *RedisStore) setCodecMaxAge(maxAge int) {
	for _, codec := range s.codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(maxAge)
		}
	}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

// encodeValues はセッション値をJSONに変換します。キーは文字列に限定されます。
func encodeValues(values map[interface{}]interface{}) ([]byte, error) {
	plain := make(map[string]interface{}, len(values))
	for k, v := range values {
		name, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("session: non-string value key %v", k)
		}
		plain[name] = v
	}
	return json.Marshal(plain)
}

func decodeValues(data []byte) (map[interface{}]interface{}, error) {
	var plain map[string]interface{}
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal values: %w", err)
	}

	values := make(map[interface{}]interface{}, len(plain))
	for k, v := range plain {
		values[k] = v
	}
	return values, nil
}
