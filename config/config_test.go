package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wesm/github-issue-link/config"
)

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	writeConfig := func(body string) string {
		path := filepath.Join(dir, "config.json")
		Expect(os.WriteFile(path, []byte(body), 0644)).To(Succeed())
		return path
	}

	It("loads settings and resolves relative paths", func() {
		path := writeConfig(`{
			"app_id": 42,
			"private_key_path": "app.pem",
			"installation_id": "github_external_id",
			"organization_id": 3,
			"integration_id": 9
		}`)

		cfg, err := config.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.AppID).To(Equal(int64(42)))
		Expect(cfg.InstallationID).To(Equal("github_external_id"))
		Expect(cfg.OrganizationID).To(Equal(int64(3)))
		Expect(cfg.IntegrationID).To(Equal(int64(9)))
		Expect(cfg.PrivateKeyPath).To(Equal(filepath.Join(dir, "app.pem")))
		Expect(cfg.DatabasePath).To(Equal(filepath.Join(dir, "github_links.db")))
		Expect(cfg.APIBaseURL).To(Equal("https://api.github.com/"))
		Expect(cfg.Validate()).To(Succeed())

		timeout, err := cfg.Timeout()
		Expect(err).NotTo(HaveOccurred())
		Expect(timeout).To(Equal(30 * time.Second))
	})

	It("prefers environment overrides", func() {
		path := writeConfig(`{"installation_id": "from_file"}`)
		GinkgoT().Setenv("GHLINK_INSTALLATION_ID", "from_env")
		GinkgoT().Setenv("GHLINK_HTTP_TIMEOUT", "5s")

		cfg, err := config.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.InstallationID).To(Equal("from_env"))

		timeout, err := cfg.Timeout()
		Expect(err).NotTo(HaveOccurred())
		Expect(timeout).To(Equal(5 * time.Second))
	})

	It("leaves the graphql url empty unless set", func() {
		cfg, err := config.LoadConfig(writeConfig(`{"api_base_url": "https://ghe.example.com/api/v3/"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.GraphQLURL).To(BeEmpty())

		GinkgoT().Setenv("GHLINK_GRAPHQL_URL", "https://ghe.example.com/api/graphql")
		cfg, err = config.LoadConfig(writeConfig(`{}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.GraphQLURL).To(Equal("https://ghe.example.com/api/graphql"))
	})

	It("reads a .env file next to the config", func() {
		path := writeConfig(`{}`)
		Expect(os.WriteFile(filepath.Join(dir, ".env"), []byte("GHLINK_APP_ID=77\n"), 0644)).To(Succeed())
		DeferCleanup(os.Unsetenv, "GHLINK_APP_ID")

		cfg, err := config.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.AppID).To(Equal(int64(77)))
	})

	It("reports missing required settings", func() {
		cfg, err := config.LoadConfig(writeConfig(`{}`))
		Expect(err).NotTo(HaveOccurred())

		err = cfg.Validate()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("app_id"))
		Expect(err.Error()).To(ContainSubstring("installation_id"))
	})

	It("writes a default config only once", func() {
		path := filepath.Join(dir, "nested", "config.json")
		Expect(config.CreateDefaultConfig(path)).To(Succeed())

		cfg, err := config.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.HTTPTimeout).To(Equal("30s"))

		Expect(os.WriteFile(path, []byte(`{"app_id": 1}`), 0644)).To(Succeed())
		Expect(config.CreateDefaultConfig(path)).To(Succeed())
		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"app_id": 1}`))
	})

	It("fails on a missing file", func() {
		_, err := config.LoadConfig(filepath.Join(dir, "missing.json"))
		Expect(err).To(HaveOccurred())
	})
})
