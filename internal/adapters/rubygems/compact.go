package rubygems

import (
	"bufio"
	"bytes"
	"strings"

	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/zerr"
)

// infoSeparator ends the header of an info file.
const infoSeparator = "---"

// ParseInfo parses a compact index info file for name. Each line after the
// separator has the form
//
//	VERSION[-PLATFORM] DEP:REQ&REQ,DEP:REQ|checksum:HEX,ruby:REQ
//
// where the dependency list may be empty.
func ParseInfo(name string, src domain.SourceIdentity, data []byte) ([]*domain.Specification, error) {
	var specs []*domain.Specification

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	body := !bytes.Contains(data, []byte(infoSeparator+"\n"))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if !body {
			body = text == infoSeparator
			continue
		}
		if text == "" {
			continue
		}

		spec, err := parseInfoLine(name, src, text)
		if err != nil {
			return nil, zerr.With(zerr.With(err, "gem", name), "line", line)
		}
		specs = append(specs, spec)
	}
	if err := scanner.Err(); err != nil {
		return nil, zerr.With(domain.ErrGemspecInvalid.Wrap(err), "gem", name)
	}
	return specs, nil
}

func parseInfoLine(name string, src domain.SourceIdentity, line string) (*domain.Specification, error) {
	head, rest, _ := strings.Cut(line, " ")
	deps, meta, _ := strings.Cut(rest, "|")

	raw, platform, _ := strings.Cut(head, "-")
	version, err := domain.ParseVersion(raw)
	if err != nil {
		return nil, domain.ErrGemspecInvalid.Wrap(err)
	}

	spec := &domain.Specification{
		Name:     name,
		Version:  version,
		Platform: domain.PlatformRuby,
		Source:   src,
	}
	if platform != "" {
		spec.Platform = domain.Platform(platform)
	}

	for _, entry := range strings.Split(deps, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		depName, reqs, ok := strings.Cut(entry, ":")
		if !ok || depName == "" {
			return nil, zerr.With(domain.ErrGemspecInvalid, "dependency", entry)
		}
		dep, err := domain.NewDependency(depName, strings.Split(reqs, "&")...)
		if err != nil {
			return nil, zerr.With(domain.ErrGemspecInvalid.Wrap(err), "dependency", depName)
		}
		spec.Dependencies = append(spec.Dependencies, dep)
	}

	for _, field := range strings.Split(meta, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(field), ":")
		if key == "checksum" {
			spec.Checksum = value
		}
	}
	return spec, nil
}
