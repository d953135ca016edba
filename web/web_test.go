package web_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rcrowley/go-metrics"

	"kvconsole/kvapi"
	"kvconsole/store"
	"kvconsole/stub"
	"kvconsole/transport"
	"kvconsole/web"
)

var _ = Describe("Console", func() {

	var (
		data    *store.MemoryStore[string]
		backend *httptest.Server
		srv     *web.Server
		front   *httptest.Server
		browser *http.Client
		// failList makes the backend answer /list with a 500.
		failList atomic.Bool
	)

	newBrowser := func() *http.Client {
		jar, err := cookiejar.New(nil)
		Expect(err).NotTo(HaveOccurred())
		return &http.Client{Jar: jar}
	}

	read := func(resp *http.Response, err error) string {
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		return string(b)
	}

	get := func(path string) string {
		return read(browser.Get(front.URL + path))
	}

	post := func(path string, form url.Values) string {
		return read(browser.PostForm(front.URL+path, form))
	}

	row := func(key string) string {
		return fmt.Sprintf(`<th scope="row">%s</th>`, key)
	}

	BeforeEach(func() {
		data = store.NewMemoryStore[string]()
		for i := 1; i <= 25; i++ {
			data.Put(fmt.Sprintf("key%02d", i), fmt.Sprintf("value%02d", i))
		}
		failList.Store(false)
		api := stub.NewRouter(data)
		backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if failList.Load() && r.URL.Path == "/list" {
				http.Error(w, "list unavailable", http.StatusInternalServerError)
				return
			}
			api.ServeHTTP(w, r)
		}))

		t, err := transport.New(transport.Config{BaseURL: backend.URL, Registry: metrics.NewRegistry()})
		Expect(err).NotTo(HaveOccurred())

		srv, err = web.New(kvapi.New(t), metrics.NewRegistry())
		Expect(err).NotTo(HaveOccurred())
		front = httptest.NewServer(srv.Handler())
		browser = newBrowser()
	})

	AfterEach(func() {
		front.Close()
		backend.Close()
	})

	It("shows the first page on the landing page", func() {
		body := get("/")
		Expect(body).To(ContainSubstring("KV Manager"))
		Expect(body).To(ContainSubstring(row("key01")))
		Expect(body).To(ContainSubstring(row("key10")))
		Expect(body).NotTo(ContainSubstring(row("key11")))
		Expect(body).To(ContainSubstring(`<span class="current">1</span>`))
		Expect(body).To(ContainSubstring(`href="/query/page/3"`))
		Expect(body).NotTo(ContainSubstring(`href="/query/page/4"`))
		Expect(body).To(ContainSubstring("25 entries"))
	})

	It("moves to another page", func() {
		get("/query")
		body := get("/query/page/3")
		Expect(body).To(ContainSubstring(row("key21")))
		Expect(body).To(ContainSubstring(row("key25")))
		Expect(body).To(ContainSubstring(`<span class="current">3</span>`))
	})

	It("refuses a page past the end", func() {
		get("/query")
		body := get("/query/page/4")
		Expect(body).To(ContainSubstring("Page 4 does not exist"))
		Expect(body).To(ContainSubstring(`<span class="current">1</span>`))

		body = get("/query/page/abc")
		Expect(body).To(ContainSubstring("Page abc does not exist"))
	})

	It("searches and clears", func() {
		data.Put("abc", "1")
		data.Put("xabcx", "2")
		get("/query")
		Expect(get("/query/page/2")).To(ContainSubstring(`<span class="current">2</span>`))

		body := post("/query/search", url.Values{"keyword": {"abc"}})
		Expect(body).To(ContainSubstring(row("abc")))
		Expect(body).To(ContainSubstring(row("xabcx")))
		Expect(body).NotTo(ContainSubstring(row("key01")))
		Expect(body).To(ContainSubstring("2 entries matching"))
		Expect(body).To(ContainSubstring(`value="abc"`))

		body = post("/query/clear", nil)
		Expect(body).To(ContainSubstring(row("key01")))
		Expect(body).To(ContainSubstring("27 entries"))
		Expect(body).To(ContainSubstring(`<span class="current">1</span>`))
	})

	It("adds a new entry", func() {
		get("/query")
		body := get("/entries/new")
		Expect(body).To(ContainSubstring("Add New Entry"))

		body = post("/entries/save", url.Values{"key": {"key00"}, "value": {"first"}})
		Expect(body).To(ContainSubstring("Entry saved"))
		Expect(body).NotTo(ContainSubstring("Add New Entry"))
		Expect(body).To(ContainSubstring(row("key00")))

		v, err := data.Get("key00")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("first"))
	})

	It("keeps the form open when a field is missing", func() {
		get("/query")
		get("/entries/new")

		body := post("/entries/save", url.Values{"key": {"key00"}})
		Expect(body).To(ContainSubstring("Both key and value are required"))
		Expect(body).To(ContainSubstring("Add New Entry"))
		Expect(body).To(ContainSubstring(`value="key00"`))

		body = post("/entries/close", nil)
		Expect(body).NotTo(ContainSubstring("Add New Entry"))
	})

	It("reports a failed save", func() {
		get("/query")
		get("/entries/new")

		body := post("/entries/save", url.Values{"key": {"key01"}, "value": {"dup"}})
		Expect(body).To(ContainSubstring("Failed to save data"))
		Expect(body).To(ContainSubstring("Add New Entry"))
	})

	It("edits an entry with its full value", func() {
		long := strings.Repeat("x", 200)
		data.Put("key01", long)

		body := get("/query")
		Expect(body).To(ContainSubstring(strings.Repeat("x", 64) + "…"))
		Expect(body).To(ContainSubstring("(200B)"))

		body = get("/entries/edit?key=key01")
		Expect(body).To(ContainSubstring("Edit Entry"))
		Expect(body).To(ContainSubstring(">" + long + "</textarea>"))

		body = post("/entries/save", url.Values{"value": {"short"}})
		Expect(body).To(ContainSubstring("Entry saved"))

		v, _ := data.Get("key01")
		Expect(v).To(Equal("short"))
	})

	It("reports an entry that cannot be fetched for editing", func() {
		get("/query")
		body := get("/entries/edit?key=missing")
		Expect(body).To(ContainSubstring("Failed to fetch entry data"))
		Expect(body).NotTo(ContainSubstring("Edit Entry"))
	})

	It("deletes after confirmation", func() {
		get("/query")
		body := get("/entries/delete?key=key01")
		Expect(body).To(ContainSubstring("Confirm Delete"))

		body = post("/entries/delete", nil)
		Expect(body).To(ContainSubstring("Entry deleted"))
		Expect(body).NotTo(ContainSubstring("Confirm Delete"))
		Expect(body).NotTo(ContainSubstring(row("key01")))

		found, _ := data.Has("key01")
		Expect(found).To(BeFalse())
	})

	It("confirms the delete even when the refetch fails", func() {
		get("/query")
		get("/entries/delete?key=key01")
		failList.Store(true)

		body := post("/entries/delete", nil)
		Expect(body).To(ContainSubstring("Entry deleted"))
		Expect(body).To(ContainSubstring("Failed to fetch data from the server"))
		Expect(body).NotTo(ContainSubstring("Confirm Delete"))

		found, _ := data.Has("key01")
		Expect(found).To(BeFalse())
	})

	It("ignores a save without an open form", func() {
		get("/query")

		body := post("/entries/save", url.Values{"key": {"key00"}, "value": {"late"}})
		Expect(body).NotTo(ContainSubstring("Entry saved"))
		Expect(body).NotTo(ContainSubstring("Add New Entry"))

		found, _ := data.Has("key00")
		Expect(found).To(BeFalse())
	})

	It("cancels a delete", func() {
		get("/query")
		get("/entries/delete?key=key01")

		body := post("/entries/delete/cancel", nil)
		Expect(body).NotTo(ContainSubstring("Confirm Delete"))

		found, _ := data.Has("key01")
		Expect(found).To(BeTrue())
	})

	It("clears the rows when the backend is unreachable", func() {
		get("/query")
		backend.Close()

		body := post("/query/refresh", nil)
		Expect(body).To(ContainSubstring("Failed to fetch data from the server"))
		Expect(body).To(ContainSubstring("No entries"))
	})

	It("keeps sessions apart", func() {
		get("/query")
		get("/query/page/2")

		other := newBrowser()
		body := read(other.Get(front.URL + "/query"))
		Expect(body).To(ContainSubstring(`<span class="current">1</span>`))

		body = get("/query")
		Expect(body).To(ContainSubstring(`<span class="current">2</span>`))
	})

	Context("session expiry", func() {
		var now time.Time

		BeforeEach(func() {
			now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			srv.Now = func() time.Time { return now }
		})

		It("drops idle sessions and keeps active ones", func() {
			get("/query")
			get("/query/page/2")

			now = now.Add(2 * time.Hour)
			other := newBrowser()
			read(other.Get(front.URL + "/query"))
			read(other.Get(front.URL + "/query/page/3"))

			Expect(srv.ExpireSessions(time.Hour)).To(Equal(1))

			body := read(other.Get(front.URL + "/query"))
			Expect(body).To(ContainSubstring(`<span class="current">3</span>`))

			body = get("/query")
			Expect(body).To(ContainSubstring(`<span class="current">1</span>`))
		})

		It("keeps sessions used within the idle time", func() {
			get("/query")
			now = now.Add(30 * time.Minute)
			get("/query/page/2")
			now = now.Add(45 * time.Minute)

			Expect(srv.ExpireSessions(time.Hour)).To(BeZero())
			Expect(get("/query")).To(ContainSubstring(`<span class="current">2</span>`))
		})
	})

	It("calls the navigation hook", func() {
		clicked := 0
		srv.OnQueryClick = func() { clicked++ }

		body := post("/nav/query", nil)
		Expect(clicked).To(Equal(1))
		Expect(body).To(ContainSubstring(row("key01")))
	})

	It("exposes request metrics", func() {
		get("/query")

		var dump map[string]map[string]any
		Expect(json.Unmarshal([]byte(get("/audit/metrics")), &dump)).To(Succeed())
		Expect(dump).To(HaveKey("web.GET./query"))
	})

	It("answers health checks", func() {
		Expect(get("/healthz")).To(Equal("ok"))
	})
})
