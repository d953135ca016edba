package stub_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"kvconsole/entry"
	"kvconsole/store"
	"kvconsole/stub"
)

// countingStore records how many entries a Scan handed to its callback.
type countingStore struct {
	*store.MemoryStore[string]
	visited int
}

func (c *countingStore) Scan(fn func(key, value string) error) error {
	return c.MemoryStore.Scan(func(k, v string) error {
		c.visited++
		return fn(k, v)
	})
}

var _ = Describe("Stub backend", func() {

	var (
		data     *store.MemoryStore[string]
		router   http.Handler
		response *httptest.ResponseRecorder
	)

	do := func(method, target string, body any) {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, target, &buf)
		response = httptest.NewRecorder()
		router.ServeHTTP(response, req)
	}

	decodeList := func() stub.ListResponse {
		var lr stub.ListResponse
		Expect(json.Unmarshal(response.Body.Bytes(), &lr)).To(Succeed())
		return lr
	}

	BeforeEach(func() {
		data = store.NewMemoryStore[string]()
		router = stub.NewRouter(data)
	})

	Context("listing", func() {
		BeforeEach(func() {
			for _, k := range []string{"c", "a", "b", "abc", "zabc"} {
				data.Put(k, "v-"+k)
			}
		})

		It("returns entries in key order with the total", func() {
			do(http.MethodGet, "/list?page=1&page_size=2", nil)
			Expect(response.Code).To(Equal(http.StatusOK))
			Expect(response.Header().Get("Content-Type")).To(Equal("application/json"))

			lr := decodeList()
			Expect(lr.Total).To(Equal(5))
			Expect(lr.Items).To(HaveLen(2))
			Expect(lr.Items[0].Key).To(Equal("a"))
			Expect(lr.Items[1].Key).To(Equal("abc"))
		})

		It("returns a middle page", func() {
			do(http.MethodGet, "/list?page=2&page_size=2", nil)
			lr := decodeList()
			Expect(lr.Total).To(Equal(5))
			Expect(lr.Items).To(Equal([]entry.Entry{{Key: "b", Value: "v-b"}, {Key: "c", Value: "v-c"}}))
		})

		It("stops scanning once the page is full", func() {
			counting := &countingStore{MemoryStore: data}
			router = stub.NewRouter(counting)

			do(http.MethodGet, "/list?page=1&page_size=2", nil)
			Expect(decodeList().Items).To(HaveLen(2))
			Expect(counting.visited).To(Equal(2))
		})

		It("defaults bad pagination parameters", func() {
			do(http.MethodGet, "/list?page=zero&page_size=-1", nil)
			lr := decodeList()
			Expect(lr.Page).To(Equal(1))
			Expect(lr.PageSize).To(Equal(10))
			Expect(lr.Items).To(HaveLen(5))
		})

		It("returns an empty array past the last page", func() {
			do(http.MethodGet, "/list?page=9&page_size=2", nil)
			Expect(response.Body.String()).To(ContainSubstring(`"items":[]`))
			Expect(decodeList().Total).To(Equal(5))
		})

		It("searches by key substring", func() {
			do(http.MethodGet, "/search?keyword=abc&page=1&page_size=10", nil)
			lr := decodeList()
			Expect(lr.Total).To(Equal(2))
			Expect(lr.Items[0].Key).To(Equal("abc"))
			Expect(lr.Items[1].Key).To(Equal("zabc"))
		})

		It("requires a search keyword", func() {
			do(http.MethodGet, "/search?keyword=", nil)
			Expect(response.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Context("mutations", func() {
		It("creates a new key", func() {
			do(http.MethodPost, "/set", map[string]string{"key": "k1", "value": "v1"})
			Expect(response.Code).To(Equal(http.StatusCreated))

			v, err := data.Get("k1")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("v1"))
		})

		It("rejects creating an existing key", func() {
			data.Put("k1", "v1")
			do(http.MethodPost, "/set", map[string]string{"key": "k1", "value": "v2"})
			Expect(response.Code).To(Equal(http.StatusConflict))

			v, _ := data.Get("k1")
			Expect(v).To(Equal("v1"))
		})

		It("accepts only one of several concurrent creates", func() {
			var (
				wg    sync.WaitGroup
				mu    sync.Mutex
				codes []int
			)
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()

					body, _ := json.Marshal(map[string]string{"key": "k1", "value": fmt.Sprintf("v%d", i)})
					rec := httptest.NewRecorder()
					router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/set", bytes.NewReader(body)))

					mu.Lock()
					codes = append(codes, rec.Code)
					mu.Unlock()
				}(i)
			}
			wg.Wait()

			created := 0
			for _, c := range codes {
				if c == http.StatusCreated {
					created++
				} else {
					Expect(c).To(Equal(http.StatusConflict))
				}
			}
			Expect(created).To(Equal(1))
		})

		It("rejects empty fields and bad JSON", func() {
			do(http.MethodPost, "/set", map[string]string{"key": "k1"})
			Expect(response.Code).To(Equal(http.StatusBadRequest))

			req := httptest.NewRequest(http.MethodPost, "/set", bytes.NewBufferString("{"))
			response = httptest.NewRecorder()
			router.ServeHTTP(response, req)
			Expect(response.Code).To(Equal(http.StatusBadRequest))
		})

		It("updates an existing key", func() {
			data.Put("k1", "v1")
			do(http.MethodPut, "/set/k1", map[string]string{"key": "k1", "value": "v2"})
			Expect(response.Code).To(Equal(http.StatusOK))

			v, _ := data.Get("k1")
			Expect(v).To(Equal("v2"))
		})

		It("refuses to update a missing key", func() {
			do(http.MethodPut, "/set/k1", map[string]string{"key": "k1", "value": "v2"})
			Expect(response.Code).To(Equal(http.StatusNotFound))
		})

		It("refuses a body key that differs from the path", func() {
			data.Put("k1", "v1")
			do(http.MethodPut, "/set/k1", map[string]string{"key": "k2", "value": "v2"})
			Expect(response.Code).To(Equal(http.StatusBadRequest))
		})

		It("deletes a key", func() {
			data.Put("k1", "v1")
			do(http.MethodDelete, "/delete/k1", nil)
			Expect(response.Code).To(Equal(http.StatusOK))

			found, _ := data.Has("k1")
			Expect(found).To(BeFalse())

			do(http.MethodDelete, "/delete/k1", nil)
			Expect(response.Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("get", func() {
		It("returns the raw value", func() {
			data.Put("k1", `{"json":"stays raw"}`)
			do(http.MethodGet, "/get/k1", nil)
			Expect(response.Code).To(Equal(http.StatusOK))
			Expect(response.Body.String()).To(Equal(`{"json":"stays raw"}`))
		})

		It("returns 404 for a missing key", func() {
			do(http.MethodGet, "/get/missing", nil)
			Expect(response.Code).To(Equal(http.StatusNotFound))
		})

		It("unescapes keys", func() {
			data.Put("a/b c", "v")
			do(http.MethodGet, "/get/a%2Fb%20c", nil)
			Expect(response.Code).To(Equal(http.StatusOK))
			Expect(response.Body.String()).To(Equal("v"))
		})
	})

	It("answers CORS preflight requests", func() {
		do(http.MethodOptions, "/set", nil)
		Expect(response.Code).To(Equal(http.StatusOK))
		Expect(response.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		Expect(response.Header().Get("Access-Control-Allow-Methods")).To(ContainSubstring("DELETE"))
	})
})
