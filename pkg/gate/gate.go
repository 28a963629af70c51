// Package gate decides, for one request, which authentication state the
// caller is in and whether the requested page may be served.
package gate

import (
	"github.com/oarkflow/whitebox/pkg/models"
)

type State int

const (
	Anonymous State = iota
	FactorUnset
	FactorPending
	FullyAuthenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case FactorUnset:
		return "factor_unset"
	case FactorPending:
		return "factor_pending"
	case FullyAuthenticated:
		return "fully_authenticated"
	default:
		return "unknown"
	}
}

// BasicSession reports whether the password step passed but the second
// factor has not.
func (s State) BasicSession() bool {
	return s == FactorUnset || s == FactorPending
}

type PageClass int

const (
	Protected PageClass = iota
	Public
	Sign
	FactorEnroll
	FactorVerify
)

// Pages is the routing table the gate classifies paths with.
type Pages struct {
	Public       []string
	Sign         []string
	FactorEnroll []string
	FactorVerify []string
	Login        string
	Enroll       string
	Verify       string
	Home         string
}

func DefaultPages() Pages {
	return Pages{
		Public:       []string{"/"},
		Sign:         []string{"/login", "/signup"},
		FactorEnroll: []string{"/signup/factor", "/signup/factor/logout"},
		FactorVerify: []string{"/login/factor", "/login/factor/logout"},
		Login:        "/login",
		Enroll:       "/signup/factor",
		Verify:       "/login/factor",
		Home:         "/settings",
	}
}

// Classify maps a request path onto a page class. Unknown paths are
// protected.
func (p Pages) Classify(path string) PageClass {
	switch {
	case contains(p.FactorEnroll, path):
		return FactorEnroll
	case contains(p.FactorVerify, path):
		return FactorVerify
	case contains(p.Sign, path):
		return Sign
	case contains(p.Public, path):
		return Public
	default:
		return Protected
	}
}

func contains(list []string, path string) bool {
	for _, p := range list {
		if p == path {
			return true
		}
	}
	return false
}

// Evidence is what the session manager found for the request.
type Evidence struct {
	TokenPresent bool
	Session      *models.Session
	User         *models.User
}

type Decision struct {
	State State
	// Redirect is empty when the request is admitted.
	Redirect string
	// ClearToken asks the caller to write a blank token.
	ClearToken bool
	// RenewToken asks the caller to write a token for the renewed session.
	RenewToken bool
}

func (d Decision) Admit() bool {
	return d.Redirect == ""
}

// Evaluate applies the transition table to one request.
func (p Pages) Evaluate(ev Evidence, page PageClass) Decision {
	var d Decision
	if ev.Session == nil || ev.User == nil {
		d.State = Anonymous
		d.ClearToken = ev.TokenPresent
		if page == Protected || page == FactorEnroll || page == FactorVerify {
			d.Redirect = p.Login
		}
		return d
	}
	d.RenewToken = ev.Session.Fresh
	switch {
	case !ev.User.SecondFactorConfirmed:
		d.State = FactorUnset
		if page != FactorEnroll {
			d.Redirect = p.Enroll
		}
	case !ev.Session.SecondFactorPassed:
		d.State = FactorPending
		if page != FactorVerify {
			d.Redirect = p.Verify
		}
	default:
		d.State = FullyAuthenticated
		if page == Sign || page == FactorEnroll || page == FactorVerify {
			d.Redirect = p.Home
		}
	}
	return d
}
