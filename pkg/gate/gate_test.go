package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oarkflow/whitebox/pkg/models"
)

func evidence(passed, confirmed, fresh bool) Evidence {
	return Evidence{
		TokenPresent: true,
		Session:      &models.Session{ID: "s", UserID: "u", SecondFactorPassed: passed, Fresh: fresh},
		User:         &models.User{ID: "u", SecondFactorConfirmed: confirmed},
	}
}

func TestClassify(t *testing.T) {
	pages := DefaultPages()
	cases := map[string]PageClass{
		"/":                     Public,
		"/login":                Sign,
		"/signup":               Sign,
		"/signup/factor":        FactorEnroll,
		"/signup/factor/logout": FactorEnroll,
		"/login/factor":         FactorVerify,
		"/settings":             Protected,
		"/api/me":               Protected,
		"/anything/else":        Protected,
	}
	for path, want := range cases {
		assert.Equal(t, want, pages.Classify(path), path)
	}
}

func TestEvaluateTransitionTable(t *testing.T) {
	pages := DefaultPages()
	all := []PageClass{Public, Sign, FactorEnroll, FactorVerify, Protected}

	type expectation struct {
		state    State
		redirect map[PageClass]string
	}
	cases := []struct {
		name string
		ev   Evidence
		want expectation
	}{
		{
			name: "anonymous",
			ev:   Evidence{},
			want: expectation{Anonymous, map[PageClass]string{
				Public: "", Sign: "", FactorEnroll: "/login", FactorVerify: "/login", Protected: "/login",
			}},
		},
		{
			name: "factor unset",
			ev:   evidence(false, false, false),
			want: expectation{FactorUnset, map[PageClass]string{
				Public: "/signup/factor", Sign: "/signup/factor", FactorEnroll: "", FactorVerify: "/signup/factor", Protected: "/signup/factor",
			}},
		},
		{
			name: "factor pending",
			ev:   evidence(false, true, false),
			want: expectation{FactorPending, map[PageClass]string{
				Public: "/login/factor", Sign: "/login/factor", FactorEnroll: "/login/factor", FactorVerify: "", Protected: "/login/factor",
			}},
		},
		{
			name: "fully authenticated",
			ev:   evidence(true, true, false),
			want: expectation{FullyAuthenticated, map[PageClass]string{
				Public: "", Sign: "/settings", FactorEnroll: "/settings", FactorVerify: "/settings", Protected: "",
			}},
		},
	}
	for _, tc := range cases {
		for _, page := range all {
			d := pages.Evaluate(tc.ev, page)
			assert.Equal(t, tc.want.state, d.State, "%s page %d", tc.name, page)
			assert.Equal(t, tc.want.redirect[page], d.Redirect, "%s page %d", tc.name, page)
			assert.Equal(t, d.Redirect == "", d.Admit())
		}
	}
}

func TestEvaluateInvalidTokenIsCleared(t *testing.T) {
	pages := DefaultPages()
	d := pages.Evaluate(Evidence{TokenPresent: true}, Protected)
	assert.Equal(t, Anonymous, d.State)
	assert.True(t, d.ClearToken)
	assert.Equal(t, "/login", d.Redirect)

	d = pages.Evaluate(Evidence{TokenPresent: true}, Sign)
	assert.True(t, d.ClearToken)
	assert.True(t, d.Admit())

	d = pages.Evaluate(Evidence{}, Sign)
	assert.False(t, d.ClearToken)
}

func TestEvaluateRenewedSessionRewritesTokenEvenOnRedirect(t *testing.T) {
	pages := DefaultPages()
	d := pages.Evaluate(evidence(false, false, true), Protected)
	assert.Equal(t, "/signup/factor", d.Redirect)
	assert.True(t, d.RenewToken)
	assert.False(t, d.ClearToken)
}

func TestUnconfirmedUserIsSentToEnrollment(t *testing.T) {
	pages := DefaultPages()
	d := pages.Evaluate(evidence(true, false, false), Protected)
	assert.Equal(t, FactorUnset, d.State)
	assert.Equal(t, "/signup/factor", d.Redirect)
	assert.True(t, d.State.BasicSession())
	assert.False(t, FullyAuthenticated.BasicSession())
}
