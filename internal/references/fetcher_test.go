package references

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gtmvars/internal/gtm"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const prefix = ")]}',\n"

// newAPI serves canned bodies keyed by path.
func newAPI(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	client := &http.Client{Transport: &http.Transport{}}
	t.Cleanup(client.CloseIdleConnections)
	return client
}

func ref(ts *httptest.Server, name, path string) gtm.VariableRef {
	return gtm.VariableRef{Name: name, Type: "Constant", ReferenceURL: ts.URL + path}
}

func TestFetchAll_SpecExample(t *testing.T) {
	ts := newAPI(t, map[string]string{
		"/api/accounts/1/variables/5/references": prefix + `{"default":{"entity":[{"tagKey":1,"name":"PageView"}]}}`,
	})
	f := New(newClient(t))

	got := f.FetchAll(context.Background(), []gtm.VariableRef{ref(ts, "campaignID", "/api/accounts/1/variables/5/references")})

	require.Len(t, got, 1)
	assert.Equal(t, "campaignID", got[0].VariableName)
	assert.Equal(t, "Constant", got[0].VariableType)
	assert.Equal(t, "PageView", got[0].TagList())
	assert.Equal(t, "", got[0].TriggerList())
	assert.Equal(t, "", got[0].LinkedVariableList())
}

func TestFetchAll_PartialFailureIsolation(t *testing.T) {
	ts := newAPI(t, map[string]string{
		"/ok":        prefix + `{"default":{"entity":[{"triggerKey":{"id":"1"},"name":"All Pages"}]}}`,
		"/noprefix":  `{"default":{"entity":[{"tagKey":1,"name":"Leaked"}]}}`,
		"/malformed": prefix + `{"default":{"entity":[`,
		"/ok2":       ")]}'\n" + `{"default":{"entity":[{"variableKey":1,"name":"Other"}]}}`,
	})
	f := New(newClient(t), WithConcurrency(2))

	refs := []gtm.VariableRef{
		ref(ts, "a", "/ok"),
		ref(ts, "b", "/noprefix"),
		ref(ts, "c", "/malformed"),
		ref(ts, "d", "/missing"),
		{Name: "e"},
		ref(ts, "f", "/ok2"),
	}
	got := f.FetchAll(context.Background(), refs)

	require.Len(t, got, len(refs))
	for i, r := range refs {
		assert.Equal(t, r.Name, got[i].VariableName, "order must follow input")
	}
	assert.Equal(t, []string{"All Pages"}, got[0].Triggers)
	for _, i := range []int{1, 2, 3, 4} {
		assert.False(t, got[i].HasReferences(), "record %s should fall back to empty", got[i].VariableName)
		assert.NotNil(t, got[i].Tags)
	}
	assert.Equal(t, []string{"Other"}, got[5].LinkedVariables)
}

func TestFetch_ReturnsFetchError(t *testing.T) {
	ts := newAPI(t, map[string]string{"/bad": "not json"})
	f := New(newClient(t))

	_, err := f.Fetch(context.Background(), ref(ts, "v", "/bad"))

	var fe *gtm.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "v", fe.Variable)
	assert.ErrorIs(t, err, errMissingPrefix)
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)
	f := New(newClient(t), WithTimeout(50*time.Millisecond))

	got := f.FetchAll(context.Background(), []gtm.VariableRef{ref(ts, "slow", "/")})

	require.Len(t, got, 1)
	assert.False(t, got[0].HasReferences())
}

func TestFetchAll_RespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		fmt.Fprint(w, prefix+`{}`)
	}))
	defer ts.Close()
	f := New(newClient(t), WithConcurrency(3))

	refs := make([]gtm.VariableRef, 10)
	for i := range refs {
		refs[i] = ref(ts, fmt.Sprintf("v%d", i), "/")
	}
	got := f.FetchAll(context.Background(), refs)

	assert.Len(t, got, 10)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestFetch_SendsCookies(t *testing.T) {
	var gotCookie string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("SID"); err == nil {
			gotCookie = c.Value
		}
		fmt.Fprint(w, prefix+`{"default":{}}`)
	}))
	defer ts.Close()

	jar, err := NewCookieJar(ts.URL, []*http.Cookie{{Name: "SID", Value: "session-token", Path: "/"}})
	require.NoError(t, err)
	client := &http.Client{Jar: jar, Transport: &http.Transport{}}
	defer client.CloseIdleConnections()

	entities, err := New(client).Fetch(context.Background(), ref(ts, "v", "/api/accounts/1/references"))

	require.NoError(t, err)
	assert.Empty(t, entities)
	assert.Equal(t, "session-token", gotCookie)
}

func TestStripPrefix(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"with comma", ")]}',\n{}", "{}", true},
		{"without comma", ")]}'\n{}", "{}", true},
		{"missing newline", ")]}'{}", "", false},
		{"no prefix", "{}", "", false},
		{"prefix not at start", " )]}'\n{}", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StripPrefix([]byte(tt.in))
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestParseEntities(t *testing.T) {
	t.Run("missing path is empty", func(t *testing.T) {
		for _, body := range []string{`{}`, `{"default":{}}`, `null`, `{"default":null}`} {
			got, err := ParseEntities([]byte(prefix + body))
			require.NoError(t, err, body)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		}
	})

	t.Run("trailing garbage fails", func(t *testing.T) {
		_, err := ParseEntities([]byte(prefix + `{} trailing`))
		assert.Error(t, err)
	})

	t.Run("keeps order", func(t *testing.T) {
		body := prefix + `{"default":{"entity":[{"tagKey":1,"name":"b"},{"tagKey":1,"name":"a"}]}}`
		got, err := ParseEntities([]byte(body))
		require.NoError(t, err)
		names := make([]string, 0, len(got))
		for _, e := range got {
			names = append(names, e.DisplayName())
		}
		if diff := cmp.Diff([]string{"b", "a"}, names); diff != "" {
			t.Fatalf("order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("large body", func(t *testing.T) {
		var sb strings.Builder
		sb.WriteString(prefix + `{"default":{"entity":[`)
		for i := 0; i < 500; i++ {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, `{"tagKey":%d,"name":"tag-%d"}`, i+1, i)
		}
		sb.WriteString(`]}}`)
		got, err := ParseEntities([]byte(sb.String()))
		require.NoError(t, err)
		assert.Len(t, got, 500)
	})
}
