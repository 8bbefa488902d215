package urltemplate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const host = "https://results.enr.clarityelections.com"

func TestParse(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected Template
	}{
		{
			name: "state with version",
			raw:  host + "/KY/15261/30235/en/summary.html",
			expected: Template{
				BaseURI:  host,
				State:    "KY",
				Election: "15261",
				Version:  "30235",
				Tail:     "/en/summary.html",
			},
		},
		{
			name: "county with legacy marker",
			raw:  host + "/GA/Appling/52178/139522/Web01/en/summary.html",
			expected: Template{
				BaseURI:  host,
				State:    "GA",
				Name:     "Appling",
				Election: "52178",
				Version:  "139522",
				Tail:     "/en/summary.html",
			},
		},
		{
			name: "single page app without version",
			raw:  host + "/GA/105369/web.264614/#/summary",
			expected: Template{
				BaseURI:  host,
				State:    "GA",
				Election: "105369",
				Tail:     "/web.264614/",
				Fragment: "/summary",
			},
		},
		{
			name: "city name with underscore and period",
			raw:  host + "/IL/St._Charles/54234/148685/en/summary.html?x=1",
			expected: Template{
				BaseURI:  host,
				State:    "IL",
				Name:     "St._Charles",
				Election: "54234",
				Version:  "148685",
				Tail:     "/en/summary.html",
				RawQuery: "x=1",
			},
		},
		{
			name: "bare election",
			raw:  host + "/KY/50972",
			expected: Template{
				BaseURI:  host,
				State:    "KY",
				Election: "50972",
			},
		},
		{
			name: "leading prefix",
			raw:  host + "/archive/KY/50972/131636/",
			expected: Template{
				BaseURI:  host + "/archive",
				State:    "KY",
				Election: "50972",
				Version:  "131636",
				Tail:     "/",
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			tmpl, err := Parse(test.raw)
			require.NoError(t, err)
			if diff := cmp.Diff(test.expected, tmpl); diff != "" {
				t.Fatalf("unexpected template (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, raw := range []string{
		host + "/ky/15261/30235/en/summary.html",
		host + "/KY/en/summary.html",
		host + "/KENTUCKY/15261/",
		host + "/KY/Adair_2/15263/",
		"/KY/15261/30235/en/summary.html",
		"",
	} {
		_, err := Parse(raw)
		require.Error(t, err, raw)

		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr), raw)
	}

	_, err := Parse(host + "/ky/15261/")
	require.ErrorIs(t, err, ErrNoMatch)
}

func TestRoundTrip(t *testing.T) {
	for _, raw := range []string{
		host + "/KY/15261/30235/en/summary.html",
		host + "/GA/Appling/52178/139522/en/summary.html",
		host + "/GA/105369/web.264614/#/summary",
		host + "/IL/Rockford/54234/148685/en/summary.html?lang=en",
		host + "/KY/50972",
	} {
		tmpl, err := Parse(raw)
		require.NoError(t, err)
		require.Equal(t, raw, tmpl.String())

		again, err := Parse(tmpl.Construct(tmpl.Tail, true))
		require.NoError(t, err)
		require.Equal(t, tmpl.WithTail(tmpl.Tail), again)
	}
}

func TestConstruct(t *testing.T) {
	tmpl, err := Parse(host + "/GA/Appling/52178/139522/Web01/en/summary.html")
	require.NoError(t, err)

	require.Equal(t,
		host+"/GA/Appling/52178/current_ver.txt",
		tmpl.Construct("/current_ver.txt", false),
	)
	require.Equal(t,
		host+"/GA/Appling/52178/139522/reports/detailxml.zip",
		tmpl.Construct("reports/detailxml.zip", true),
	)
	require.Equal(t, host+"/GA/Appling/52178/139522", tmpl.Construct("", true))

	unversioned := tmpl.WithVersion("")
	require.Equal(t,
		host+"/GA/Appling/52178/en/summary.html",
		unversioned.Construct("/en/summary.html", true),
	)
	require.Equal(t, "139522", tmpl.Version, "derivation must not touch the original")
}

func TestChild(t *testing.T) {
	state, err := Parse(host + "/KY/50972/131636/en/summary.html")
	require.NoError(t, err)

	child := state.Child("Adair", "50974", "131700")
	require.Equal(t,
		host+"/KY/Adair/50974/131700/Web01/en/summary.html",
		child.Construct("/Web01/en/summary.html", true),
	)
	require.Equal(t, host+"/KY", child.StateURL())
	require.Equal(t, "results.enr.clarityelections.com", child.Host())
}

func TestStripLegacyMarker(t *testing.T) {
	require.Equal(t, "/GA/1/2/en/summary.html", StripLegacyMarker("/GA/1/2/Web01/en/summary.html"))
	require.Equal(t, "/GA/1/2/", StripLegacyMarker("/GA/1/2/Web01/"))
	require.Equal(t, "/GA/1/2", StripLegacyMarker("/GA/1/2/Web01"))
	require.Equal(t, "/GA/1/2/Web012/", StripLegacyMarker("/GA/1/2/Web012/"))

	require.True(t, HasLegacyMarker(host+"/GA/1/2/Web01/en/summary.html"))
	require.False(t, HasLegacyMarker(host+"/GA/1/2/Web02/en/summary.html"))
}
