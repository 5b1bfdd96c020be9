// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	ConfigLoadFailedId Id = iota + 1
	SpecFileNotFoundId
	InvalidModuleIDId
	ArchiveLoadFailedId
	RepositoryUnavailableId
	ViewNotFoundId
	DeploySpecsUnsupportedId
	ArchiveNotFoundId
)

type (
	// Id identifies a catalog issue.
	Id int

	// MarkdownMsg is Markdown guidance rendered for the user.
	MarkdownMsg string

	// HttpLink is a documentation URL.
	HttpLink string

	// Issue is a class of failure with Markdown guidance.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or does not match the schema.

## Things you can try:
- Print the effective configuration:
~~~
$ scriptvault config show
~~~

- Write a fresh file with default values and compare:
~~~
$ scriptvault config init
~~~

- Check that ` + "`repository.backend`" + ` is one of memory, filesystem, badger, redis, sql or s3`,
	}

	specFileNotFoundIssue = &Issue{
		id: SpecFileNotFoundId,
		mdMsg: `
# No module spec found!

The archive has no moduleSpec.cue, moduleSpec.toml or moduleSpec.yaml file, and
no module id could be derived from its name.

## Things you can try:
- Create a spec file in the archive directory:
~~~
$ scriptvault spec init acme:util --dir ./acme-util
~~~

- Name the directory or ZIP file after the module id (for example ` + "`acme:util.zip`" + `)`,
	}

	invalidModuleIDIssue = &Issue{
		id: InvalidModuleIDId,
		mdMsg: `
# Invalid module id!

A module id is a name, optionally followed by ` + "`:`" + ` and a version.
The version is everything after the last separator.

## Examples:
- ` + "`acme`" + `
- ` + "`acme:util`" + `
- ` + "`acme:base:1.0`" + ` (name ` + "`acme:base`" + `, version ` + "`1.0`" + `)

Ids must not be empty, contain whitespace, or start or end with ` + "`:`" + `.`,
	}

	archiveLoadFailedIssue = &Issue{
		id: ArchiveLoadFailedId,
		mdMsg: `
# Failed to load the script archive!

The directory or ZIP file could not be read as a script archive.

## Things you can try:
- Check the spec file syntax:
~~~
$ scriptvault spec show ./acme-util
~~~

- Make sure ZIP entries are relative paths that stay inside the archive`,
	}

	repositoryUnavailableIssue = &Issue{
		id: RepositoryUnavailableId,
		mdMsg: `
# Repository unavailable!

The storage backend reported an error. The operation was not retried.

## Things you can try:
- Check that the backend is reachable (Redis address, S3 endpoint, database path)
- Check credentials and permissions for the configured bucket or directory
- Run again with ` + "`--verbose`" + ` to see the full error chain`,
	}

	viewNotFoundIssue = &Issue{
		id: ViewNotFoundId,
		mdMsg: `
# Repository view not found!

The repository does not expose a view with this name.

## Things you can try:
- List the configured views:
~~~
$ scriptvault config show
~~~

- Add the view under ` + "`repository.views`" + ` in your config file`,
	}

	deploySpecsUnsupportedIssue = &Issue{
		id: DeploySpecsUnsupportedId,
		mdMsg: `
# Deploy specs are not enabled!

This repository does not store deploy specs, so nothing was written.

## Things you can try:
- Enable them in your config file:
~~~cue
repository: deploy_specs: true
~~~

- Insert the archive without ` + "`--deploy`" + ` flags`,
	}

	archiveNotFoundIssue = &Issue{
		id: ArchiveNotFoundId,
		mdMsg: `
# Archive not found!

None of the requested module ids are stored in the repository.

## Things you can try:
- List the stored archives:
~~~
$ scriptvault repo list
~~~

- Check the version part of the id; ` + "`acme`" + ` and ` + "`acme:1.0`" + ` are different modules`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():       configLoadFailedIssue,
		specFileNotFoundIssue.Id():       specFileNotFoundIssue,
		invalidModuleIDIssue.Id():        invalidModuleIDIssue,
		archiveLoadFailedIssue.Id():      archiveLoadFailedIssue,
		repositoryUnavailableIssue.Id():  repositoryUnavailableIssue,
		viewNotFoundIssue.Id():           viewNotFoundIssue,
		deploySpecsUnsupportedIssue.Id(): deploySpecsUnsupportedIssue,
		archiveNotFoundIssue.Id():        archiveNotFoundIssue,
	}
)

// Id returns the issue id.
func (i *Issue) Id() Id { return i.id }

// MarkdownMsg returns the raw Markdown guidance.
func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

// DocLinks returns the documentation links of the issue.
func (i *Issue) DocLinks() []HttpLink { return slices.Clone(i.docLinks) }

// Render renders the guidance with the glamour style at stylePath
// ("dark", "light", "notty", ... or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		md.WriteString("\n\n## See also:\n")
		for _, link := range i.docLinks {
			md.WriteString("- [" + string(link) + "](" + string(link) + ")\n")
		}
	}
	return render(md.String(), stylePath)
}

// Values returns all catalog issues ordered by id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int { return int(a.id) - int(b.id) })
}

// Get returns the issue with the given id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
