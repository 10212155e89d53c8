package containerstack

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	composetypes "github.com/compose-spec/compose-go/v2/types"
	"github.com/transdock/transdock/internal/result"
)

// loadComposeStack parses a compose file into a ComposeStack,
// resolving bind-mount data directories from each service's `volumes:`
// entries. This is the single parsing path shared by the local and
// remote clients — the remote client reads the project's compose YAML
// locally over the migration's own transferred copy rather than
// re-parsing it on the remote host.
func loadComposeStack(path string) result.Result[ComposeStack] {
	data, err := os.ReadFile(path)
	if err != nil {
		return result.Fail[ComposeStack](result.NotFound("COMPOSE_FILE_NOT_FOUND", err.Error()))
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	envMap := make(map[string]string)
	if envData, err := os.ReadFile(envFile); err == nil {
		envMap = parseEnvFile(envData)
	}

	configDetails := composetypes.ConfigDetails{
		WorkingDir: filepath.Dir(path),
		ConfigFiles: []composetypes.ConfigFile{
			{Filename: path, Content: data},
		},
		Environment: envMap,
	}

	project, err := loader.Load(configDetails)
	if err != nil {
		return result.Fail[ComposeStack](result.Parse("COMPOSE_PARSE_FAILED", err.Error()))
	}

	stack := ComposeStack{
		ProjectName: project.Name,
		Path:        path,
	}
	for name, svc := range project.Services {
		stack.Services = append(stack.Services, name)
		for _, vol := range svc.Volumes {
			switch {
			case vol.Type == "bind" && strings.HasPrefix(vol.Source, "/"):
				stack.bindMounts = append(stack.bindMounts, vol.Source)
			case vol.Type == "volume" && vol.Source != "":
				stack.namedVolumeNames = append(stack.namedVolumeNames, vol.Source)
			}
		}
	}
	for name := range project.Networks {
		stack.Networks = append(stack.Networks, name)
	}
	for name := range project.Volumes {
		stack.Volumes = append(stack.Volumes, name)
	}

	stack.bindMounts = dedupe(stack.bindMounts)
	stack.namedVolumeNames = dedupe(stack.namedVolumeNames)
	return result.Ok(stack)
}

func parseEnvFile(data []byte) map[string]string {
	env := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.Index(line, "="); idx > 0 {
			env[line[:idx]] = strings.Trim(line[idx+1:], `"'`)
		}
	}
	return env
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// externalVolumes inspects the raw compose-go project for `external:
// true` volumes, used by ValidatePrerequisites.
func externalVolumes(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	configDetails := composetypes.ConfigDetails{
		WorkingDir: filepath.Dir(path),
		ConfigFiles: []composetypes.ConfigFile{
			{Filename: path, Content: data},
		},
	}
	project, err := loader.Load(configDetails)
	if err != nil {
		return false, err
	}
	for _, vol := range project.Volumes {
		if vol.External {
			return true, nil
		}
	}
	return false, nil
}
