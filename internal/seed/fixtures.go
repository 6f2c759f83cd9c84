package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"feedline/internal/models"

	"gopkg.in/yaml.v3"
)

// Fixtures is the YAML document accepted by cmd/seed --fixtures.
//
//	users:
//	  - email: ann@example.com
//	    name: Ann
//	    password: secret1
//	    status: Writing
//	    posts:
//	      - title: Hello feed
//	        content: First post
type Fixtures struct {
	Users []UserFixture `yaml:"users"`
}

type UserFixture struct {
	Email    string        `yaml:"email"`
	Name     string        `yaml:"name"`
	Password string        `yaml:"password"`
	Status   string        `yaml:"status"`
	Posts    []PostFixture `yaml:"posts"`
}

type PostFixture struct {
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
}

// LoadFixtures decodes and checks a fixtures document.
func LoadFixtures(r io.Reader) (*Fixtures, error) {
	var fx Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	seen := make(map[string]bool, len(fx.Users))
	for i, u := range fx.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" || u.Name == "" {
			return nil, fmt.Errorf("fixture user %d: email and name are required", i+1)
		}
		if seen[email] {
			return nil, fmt.Errorf("fixture user %d: duplicate email %s", i+1, email)
		}
		seen[email] = true
		fx.Users[i].Email = email
	}
	return &fx, nil
}

// ApplyFixtures creates every fixture user and their posts. Users without a
// password get DefaultPassword.
func (s *Seeder) ApplyFixtures(ctx context.Context, fx *Fixtures) ([]*models.User, error) {
	users := make([]*models.User, 0, len(fx.Users))
	for _, uf := range fx.Users {
		user, err := s.factory.CreateUser(ctx, func(u *models.User) {
			u.Email = uf.Email
			u.Name = uf.Name
			if uf.Password != "" {
				u.Password = uf.Password
			}
			if uf.Status != "" {
				u.Status = uf.Status
			}
		})
		if err != nil {
			return users, fmt.Errorf("create fixture user %s: %w", uf.Email, err)
		}

		for _, pf := range uf.Posts {
			if _, err := s.factory.CreatePost(ctx, user, func(p *models.Post) {
				if pf.Title != "" {
					p.Title = pf.Title
				}
				if pf.Content != "" {
					p.Content = pf.Content
				}
			}); err != nil {
				return users, fmt.Errorf("create fixture post for %s: %w", uf.Email, err)
			}
		}
		users = append(users, user)
	}
	return users, nil
}
