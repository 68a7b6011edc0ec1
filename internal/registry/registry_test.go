package registry_test

import (
	"context"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/haldis-labs/reverseproxy-lb/internal/registry"
)

type fakeSource struct {
	urls    []string
	dynamic bool
	err     error
}

func (f *fakeSource) List(ctx context.Context) ([]string, error) { return f.urls, f.err }
func (f *fakeSource) Name() string                               { return "fake" }
func (f *fakeSource) SupportsDynamic() bool                       { return f.dynamic }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() registry.Config {
	return registry.Config{
		InitialLatencyMs: 100,
		WindowMs:         30000,
		WindowMaxEntries: 10,
		Slowness:         slowPolicy,
	}
}

var _ = Describe("Registry", func() {
	Describe("Reconcile", func() {
		It("adds newly discovered backends", func() {
			src := &fakeSource{urls: []string{"http://a", "http://b"}}
			reg := registry.New(src, testConfig(), testLogger())

			Expect(reg.Reconcile(context.Background())).To(Succeed())
			Expect(reg.AllSnapshot()).To(HaveLen(2))
		})

		It("does not remove missing backends when the source is static", func() {
			src := &fakeSource{urls: []string{"http://a"}, dynamic: false}
			reg := registry.New(src, testConfig(), testLogger())
			Expect(reg.Reconcile(context.Background())).To(Succeed())

			src.urls = []string{}
			Expect(reg.Reconcile(context.Background())).To(Succeed())
			Expect(reg.AllSnapshot()).To(HaveLen(1))
		})

		It("removes backends absent from a dynamic source", func() {
			src := &fakeSource{urls: []string{"http://a", "http://b"}, dynamic: true}
			reg := registry.New(src, testConfig(), testLogger())
			Expect(reg.Reconcile(context.Background())).To(Succeed())

			src.urls = []string{"http://a"}
			Expect(reg.Reconcile(context.Background())).To(Succeed())
			Expect(reg.AllSnapshot()).To(HaveLen(1))
			Expect(reg.Get("http://b")).To(BeNil())
		})

		It("preserves existing record state across reconcile", func() {
			src := &fakeSource{urls: []string{"http://a"}, dynamic: true}
			reg := registry.New(src, testConfig(), testLogger())
			Expect(reg.Reconcile(context.Background())).To(Succeed())

			reg.MarkUnhealthy("http://a", "boom")
			Expect(reg.Reconcile(context.Background())).To(Succeed())
			Expect(reg.Get("http://a").Healthy()).To(BeFalse())
		})
	})

	Describe("HealthySnapshot", func() {
		It("excludes unhealthy and cooling-down records", func() {
			src := &fakeSource{urls: []string{"http://a", "http://b"}}
			reg := registry.New(src, testConfig(), testLogger())
			Expect(reg.Reconcile(context.Background())).To(Succeed())

			reg.MarkUnhealthy("http://a", "boom")
			Expect(reg.HealthySnapshot()).To(HaveLen(1))
			Expect(reg.HealthySnapshot()[0].URL()).To(Equal("http://b"))
		})
	})

	Describe("MarkUnhealthy / RecordLatency on unknown URL", func() {
		It("is a no-op", func() {
			reg := registry.New(&fakeSource{}, testConfig(), testLogger())
			Expect(func() {
				reg.MarkUnhealthy("http://ghost", "n/a")
				reg.RecordLatency("http://ghost", 10)
			}).NotTo(Panic())
		})
	})
})
