package resolver

import (
	"fmt"
	"strconv"
	"strings"

	"eduops.app/relay/common"
	"eduops.app/relay/internal/model"
)

// Assignment tag keys, in priority order, as they appear after slugging the
// custom field or variable name. "Responsável" and "responsavel_id" both match.
var assignmentKeys = []string{
	"manager-id",
	"assigned-manager-id",
	"atendente-id",
	"responsavel-id",
	"manager-email",
	"atendente-email",
	"responsavel-email",
	"assigned-to",
	"atendente",
	"responsavel",
	"manager",
}

// ResolveManager returns the manager that owns sub inside acct, or nil.
//
// Only explicit assignment tags count. The first tag whose value names a
// manager of acct decides; if that manager has assign_chat == 0 the
// subscriber is unassigned. Managers of other accounts are never considered,
// and a subscriber tagged with another account resolves to nil.
func ResolveManager(sub model.Subscriber, acct model.Account, managers []model.Manager) *model.Manager {
	if sub.Account != "" && sub.Account != acct {
		return nil
	}

	scoped := make([]model.Manager, 0, len(managers))
	for _, m := range managers {
		if m.Account == acct {
			scoped = append(scoped, m)
		}
	}
	if len(scoped) == 0 {
		return nil
	}

	for _, ref := range assignmentRefs(sub) {
		m := match(ref, scoped)
		if m == nil {
			continue
		}
		if !m.Eligible() {
			return nil
		}
		return m
	}
	return nil
}

// assignmentRefs collects tag values in key priority order, custom fields
// before variables for the same key.
func assignmentRefs(sub model.Subscriber) []string {
	custom := slugKeys(sub.CustomFields)
	vars := slugKeys(sub.Variables)

	var refs []string
	for _, key := range assignmentKeys {
		for _, fields := range []map[string]any{custom, vars} {
			if v, ok := fields[key]; ok {
				if ref := stringify(v); ref != "" {
					refs = append(refs, ref)
				}
			}
		}
	}
	return refs
}

func slugKeys(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		slug, err := common.Slugify(k, "")
		if err != nil {
			continue
		}
		if _, taken := out[slug]; !taken {
			out[slug] = v
		}
	}
	return out
}

func match(ref string, managers []model.Manager) *model.Manager {
	byEmail := strings.Contains(ref, "@")
	for i := range managers {
		m := &managers[i]
		if byEmail {
			if m.Email != "" && strings.EqualFold(strings.TrimSpace(m.Email), ref) {
				return m
			}
			continue
		}
		if m.ID.String() == ref {
			return m
		}
	}
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
