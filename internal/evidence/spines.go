package evidence

// candidateSpines returns the known architecturally significant paths that
// actually exist in the evidence universe, in a fixed order. These cover
// the conventional entry files, routing/config manifests, and onboarding
// docs of common repository layouts.
func candidateSpines(available map[string]bool) []string {
	var out []string
	seen := map[string]bool{}
	add := func(p string) {
		if available[p] && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	prefixes := []string{"", "frontend/", "apps/web/", "apps/frontend/"}
	for _, pref := range prefixes {
		add(pref + "middleware.ts")
		add(pref + "middleware.js")
		add(pref + "app/layout.tsx")
		add(pref + "app/layout.ts")
		add(pref + "app/page.tsx")
		add(pref + "app/page.ts")
		add(pref + "next.config.ts")
		add(pref + "next.config.js")
		add(pref + "package.json")
		add(pref + "tsconfig.json")
		add(pref + "jsconfig.json")
	}

	for _, p := range []string{"pyproject.toml", "uv.lock", "alembic.ini", "package.json", "tsconfig.json", "README.md", "readme.md"} {
		add(p)
	}
	for _, p := range []string{"backend/main.py", "backend/app.py", "backend/server.py", "backend/security.py", "backend/config.py"} {
		add(p)
	}
	return out
}
