// Package drivertest holds the behavior every storage.Driver must share.
package drivertest

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/neolink/pkg/storage"
)

// DescribeDriver registers the shared driver specs. newDriver is called
// before each spec and the driver is closed after it.
func DescribeDriver(newDriver func() storage.Driver) {
	Describe("storage.Driver behavior", func() {
		var (
			driver storage.Driver
			ctx    context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = nil
			driver = newDriver()
		})

		AfterEach(func() {
			if driver != nil {
				Expect(driver.Close()).To(Succeed())
			}
		})

		It("returns NotFoundError for missing keys", func() {
			_, err := driver.Get(ctx, storage.ScopeSession, "nobody")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("stores and replaces values", func() {
			Expect(driver.Put(ctx, storage.ScopeSession, "u1", "chat-a")).To(Succeed())
			Expect(driver.Put(ctx, storage.ScopeSession, "u1", "chat-b")).To(Succeed())

			v, err := driver.Get(ctx, storage.ScopeSession, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("chat-b"))
		})

		It("keeps scopes apart", func() {
			Expect(driver.Put(ctx, storage.ScopeSession, "id", "chat")).To(Succeed())
			Expect(driver.Put(ctx, storage.ScopeUserChannel, "id", "chan")).To(Succeed())
			Expect(driver.Put(ctx, storage.ScopeGuildChannel, "id", "guild-chan")).To(Succeed())

			Expect(driver.Get(ctx, storage.ScopeSession, "id")).To(Equal("chat"))
			Expect(driver.Get(ctx, storage.ScopeUserChannel, "id")).To(Equal("chan"))
			Expect(driver.Get(ctx, storage.ScopeGuildChannel, "id")).To(Equal("guild-chan"))
		})

		It("deletes and reports whether the key existed", func() {
			Expect(driver.Put(ctx, storage.ScopeSession, "u1", "chat")).To(Succeed())

			Expect(driver.Delete(ctx, storage.ScopeSession, "u1")).To(BeTrue())
			Expect(driver.Delete(ctx, storage.ScopeSession, "u1")).To(BeFalse())

			_, err := driver.Get(ctx, storage.ScopeSession, "u1")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})
}
