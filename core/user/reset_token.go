package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/RouahImad/Project-epg-sub000/core"
)

// A password reset token reads "<issued>.<mac>". issued is the issue time in minutes since the unix
// epoch, written in base 36. mac signs it together with the user's password hash and last login, so
// the token dies as soon as the password changes or the user logs in again.

const resetTokenPurpose = "password-reset"

var (
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID hides a user ID in a password reset link.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	return string(id), err
}

// MakeToken issues a password reset token for usr.
func MakeToken(usr User, secretKey string) string {
	issued := core.NowFunc().Unix() / 60
	return strconv.FormatInt(issued, 36) + "." + resetMAC(usr, issued, secretKey)
}

func verifyToken(usr User, token, secretKey string, timeout time.Duration) error {
	rawIssued, mac, ok := strings.Cut(token, ".")
	if !ok {
		return errInvalidToken
	}
	issued, err := strconv.ParseInt(rawIssued, 36, 64)
	if err != nil {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(mac), []byte(resetMAC(usr, issued, secretKey))) {
		return errInvalidToken
	}
	if core.NowFunc().Sub(time.Unix(issued*60, 0)) > timeout {
		return errTokenExpired
	}
	return nil
}

func resetMAC(usr User, issued int64, secretKey string) string {
	var lastLogin int64
	if usr.LastLogin.Valid {
		lastLogin = usr.LastLogin.Time.UnixNano()
	}
	h := hmac.New(sha256.New, []byte(secretKey))
	fmt.Fprintf(h, "%s\x00%s\x00%x\x00%d\x00%d", resetTokenPurpose, usr.ID, usr.PasswordHash, lastLogin, issued)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
