package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func BenchmarkCheckReadiness(b *testing.B) {
	checker := New(5 * time.Second)
	checker.RegisterCheck("multiproc_dir", DirectoryCheck(b.TempDir()))
	checker.RegisterCheck("static", func(ctx context.Context) error { return nil })
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = checker.CheckReadiness(ctx)
	}
}

func BenchmarkLivenessHandler(b *testing.B) {
	handler := New(5 * time.Second).LivenessHandler()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			handler(httptest.NewRecorder(), req)
		}
	})
}
