package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"server.host":       "0.0.0.0",
		"server.port":       8080,
		"server.public_url": "http://localhost:8080",

		"database.driver":          "postgres",
		"database.max_connections": 25,

		"auth.jwt_expiry":  "24h",
		"auth.admin_email": "admin@clientforge.local",

		"ci.api_base": "https://api.github.com",
		"ci.ref":      "master",
		"ci.timeout":  "15s",

		"storage.images_path":      "/data/png",
		"storage.outputs_path":     "/data/exe",
		"storage.max_image_bytes":  5 << 20,
		"storage.max_output_bytes": 2 << 30,

		"build.default_server":        "rs-ny.rustdesk.com",
		"build.default_key":           "OeVuKk5nlHiXp+APNn0Y3pC1Iwpwn44JGqrQCsWqmBw=",
		"build.default_url_link":      "https://rustdesk.com",
		"build.default_download_link": "https://rustdesk.com/download",
		"build.default_company":       "Purslane Ltd",

		"jobs.stale_after":    "6h",
		"jobs.retention":      "720h",
		"jobs.sweep_interval": "15m",

		"cors.allowed_origins": []string{"http://localhost:3000"},

		"logging.level":  "info",
		"logging.format": "json",
	}

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return err
		}
	}
	return nil
}
