package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"exam:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
	},
	"editor": {
		"exam:view",
		"paper:create",
		"paper:publish",
		"attempt:view-all",
	},
	"admin": {
		"*", // everything
	},
}
