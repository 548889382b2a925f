package users

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrBadPassword       = errors.New("invalid username or password")
	ErrAddressNotAllowed = errors.New("address not allowed for user")
	ErrInvalidIPPrefix   = errors.New("invalid ip prefix")
)

type User struct {
	Username string
	// Password is either plain text or a bcrypt hash ("$2a$", "$2b$", "$2y$")
	Password string
	// IPs is the source address allow-list, an empty list allows every address
	IPs map[string]*netip.Prefix
}

// CheckPassword reports whether pass matches the stored password
func (u *User) CheckPassword(pass string) bool {
	if isBcryptHash(u.Password) {
		return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(pass)) == nil
	}
	return u.Password == pass
}

// FindIP finds an IP in the prefixes in the user.
// ip may carry a port ("1.2.3.4:5678").
func (u *User) FindIP(ip string) bool {
	if len(u.IPs) == 0 {
		return true
	}
	addr, err := parseAddr(ip)
	if err != nil {
		return false
	}
	for _, v := range u.IPs {
		if v.Contains(addr) {
			return true
		}
	}
	return false
}

// AddIP adds an IP prefix to the user
// if the ip is without the prefix, it will add /32 (or /128 for IPv6)
func (u *User) AddIP(ip string) error {
	ip = withPrefix(ip)
	prefix, err := netip.ParsePrefix(ip)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidIPPrefix, ip, err)
	}
	if u.IPs == nil {
		u.IPs = make(map[string]*netip.Prefix)
	}
	u.IPs[ip] = &prefix
	return nil
}

// RemoveIP removes an IP prefix from the user
func (u *User) RemoveIP(ip string) {
	delete(u.IPs, withPrefix(ip))
}

type Users interface {
	// Get finds a user by username
	Get(username string) (*User, error)
	// Find returns the user if the password matches and remoteAddr is in the allow-list
	Find(username, password, remoteAddr string) (*User, error)
}

var _ Users = &LocalUsers{}

// LocalUsers is an in-memory credential table. It is filled at startup and read
// concurrently by every session.
type LocalUsers struct {
	users map[string]*User
	wg    sync.RWMutex
}

func NewLocalUsers() *LocalUsers {
	return &LocalUsers{
		users: make(map[string]*User),
	}
}

// List returns a copy of the table
func (u *LocalUsers) List() map[string]*User {
	u.wg.RLock()
	defer u.wg.RUnlock()
	list := make(map[string]*User, len(u.users))
	for k, v := range u.users {
		list[k] = v
	}
	return list
}

func (u *LocalUsers) Get(username string) (*User, error) {
	u.wg.RLock()
	defer u.wg.RUnlock()
	user, ok := u.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUserNotFound, username)
	}
	return user, nil
}

func (u *LocalUsers) Find(username, password, remoteAddr string) (*User, error) {
	user, err := u.Get(username)
	if err != nil {
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, ErrBadPassword
	}
	if !user.FindIP(remoteAddr) {
		return nil, fmt.Errorf("%w: %s", ErrAddressNotAllowed, remoteAddr)
	}
	return user, nil
}

// Add adds or replaces a user, ips are optional allow-list prefixes
func (u *LocalUsers) Add(username, pass string, ips ...string) (*User, error) {
	newUser := &User{
		Username: username,
		Password: pass,
		IPs:      make(map[string]*netip.Prefix),
	}
	for _, ip := range ips {
		if err := newUser.AddIP(ip); err != nil {
			return nil, err
		}
	}

	u.wg.Lock()
	defer u.wg.Unlock()
	u.users[newUser.Username] = newUser
	return newUser, nil
}

func (u *LocalUsers) Remove(username string) *User {
	u.wg.Lock()
	defer u.wg.Unlock()
	oldUser := u.users[username]
	delete(u.users, username)
	return oldUser
}

// HashPassword returns the bcrypt hash to store in the configuration instead of a plain password
func HashPassword(pass string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(hash), nil
}

func isBcryptHash(s string) bool {
	if len(s) != 60 {
		return false
	}
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

func withPrefix(ip string) string {
	if strings.Contains(ip, "/") {
		return ip
	}
	if strings.Contains(ip, ":") {
		return ip + "/128"
	}
	return ip + "/32"
}

func parseAddr(s string) (netip.Addr, error) {
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.Unmap(), nil
}
