// Package openapi builds the OpenAPI 3 document describing the registry API.
package openapi

import (
	"fmt"

	"github.com/goccy/go-yaml"

	"github.com/chungindustries/cpm-registry/internal/domain/registry"
)

// Info describes the deployment the document is generated for.
type Info struct {
	Title       string
	Version     string
	Description string
	ServerURL   string
}

// DefaultInfo returns the document info used by the server.
func DefaultInfo(version, serverURL string) Info {
	return Info{
		Title:   "CPM Registry",
		Version: version,
		Description: "API for the CPM Registry, used by the Chung Package Manager (cpm) to host " +
			"and distribute ComputerCraft-focused Lua packages.",
		ServerURL: serverURL,
	}
}

// Document is the subset of OpenAPI 3.0 the registry needs.
type Document struct {
	OpenAPI    string               `yaml:"openapi"`
	Info       DocumentInfo         `yaml:"info"`
	Servers    []Server             `yaml:"servers,omitempty"`
	Tags       []Tag                `yaml:"tags,omitempty"`
	Paths      map[string]*PathItem `yaml:"paths"`
	Components Components           `yaml:"components"`
}

type DocumentInfo struct {
	Title       string `yaml:"title"`
	Version     string `yaml:"version"`
	Description string `yaml:"description,omitempty"`
}

type Server struct {
	URL string `yaml:"url"`
}

type Tag struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

type PathItem struct {
	Get  *Operation `yaml:"get,omitempty"`
	Post *Operation `yaml:"post,omitempty"`
}

type Operation struct {
	OperationID string               `yaml:"operationId"`
	Summary     string               `yaml:"summary"`
	Description string               `yaml:"description,omitempty"`
	Tags        []string             `yaml:"tags,omitempty"`
	Parameters  []Parameter          `yaml:"parameters,omitempty"`
	RequestBody *RequestBody         `yaml:"requestBody,omitempty"`
	Responses   map[string]*Response `yaml:"responses"`
}

type Parameter struct {
	Name     string  `yaml:"name"`
	In       string  `yaml:"in"`
	Required bool    `yaml:"required"`
	Schema   *Schema `yaml:"schema"`
}

type RequestBody struct {
	Required bool                  `yaml:"required"`
	Content  map[string]*MediaType `yaml:"content"`
}

type Response struct {
	Description string                `yaml:"description"`
	Content     map[string]*MediaType `yaml:"content,omitempty"`
}

type MediaType struct {
	Schema *Schema `yaml:"schema"`
}

type Components struct {
	Schemas map[string]*Schema `yaml:"schemas"`
}

type Schema struct {
	Ref                  string             `yaml:"$ref,omitempty"`
	Type                 string             `yaml:"type,omitempty"`
	Format               string             `yaml:"format,omitempty"`
	Description          string             `yaml:"description,omitempty"`
	Pattern              string             `yaml:"pattern,omitempty"`
	Enum                 []string           `yaml:"enum,omitempty"`
	Properties           map[string]*Schema `yaml:"properties,omitempty"`
	Required             []string           `yaml:"required,omitempty"`
	Items                *Schema            `yaml:"items,omitempty"`
	AdditionalProperties any                `yaml:"additionalProperties,omitempty"`
}

func ref(name string) *Schema {
	return &Schema{Ref: "#/components/schemas/" + name}
}

func str(pattern, description string) *Schema {
	return &Schema{Type: "string", Pattern: pattern, Description: description}
}

func object(required []string, props map[string]*Schema) *Schema {
	return &Schema{Type: "object", Properties: props, Required: required, AdditionalProperties: false}
}

func jsonContent(schema *Schema) map[string]*MediaType {
	return map[string]*MediaType{"application/json": {Schema: schema}}
}

func success(data *Schema) *Schema {
	return object([]string{"status", "data"}, map[string]*Schema{
		"status": {Type: "string", Enum: []string{"success"}},
		"data":   data,
	})
}

func failResponse(description string) *Response {
	return &Response{Description: description, Content: jsonContent(ref("Fail"))}
}

func errorResponse() *Response {
	return &Response{Description: "Storage or server failure", Content: jsonContent(ref("Error"))}
}

var (
	nameParam    = Parameter{Name: "name", In: "path", Required: true, Schema: &Schema{Type: "string"}}
	versionParam = Parameter{Name: "version", In: "path", Required: true, Schema: str(registry.VersionPattern, "")}
)

// New returns the document for info.
func New(info Info) *Document {
	doc := &Document{
		OpenAPI: "3.0.3",
		Info: DocumentInfo{
			Title:       info.Title,
			Version:     info.Version,
			Description: info.Description,
		},
		Tags: []Tag{{
			Name:        "Packages",
			Description: "Endpoints for browsing and retrieving cpm packages.",
		}},
		Paths:      paths(),
		Components: Components{Schemas: schemas()},
	}
	if info.ServerURL != "" {
		doc.Servers = []Server{{URL: info.ServerURL}}
	}
	return doc
}

// Build renders the document for info as YAML.
func Build(info Info) ([]byte, error) {
	out, err := yaml.MarshalWithOptions(New(info), yaml.Indent(2), yaml.IndentSequence(true))
	if err != nil {
		return nil, fmt.Errorf("failed to render API document: %w", err)
	}
	return out, nil
}

func schemas() map[string]*Schema {
	dependencies := &Schema{
		Type:                 "object",
		Description:          "Dependency name to semver range",
		AdditionalProperties: &Schema{Type: "string"},
	}

	return map[string]*Schema{
		"PackageVersionMetadata": object([]string{"name", "version"}, map[string]*Schema{
			"name":         str(registry.NamePattern, "Package name"),
			"version":      str(registry.VersionPattern, "MAJOR.MINOR.PATCH[-prerelease]"),
			"author":       {Type: "string"},
			"dependencies": dependencies,
		}),
		"PackageVersion": object([]string{"name", "version", "dist"}, map[string]*Schema{
			"name":         str(registry.NamePattern, ""),
			"version":      str(registry.VersionPattern, ""),
			"author":       {Type: "string"},
			"dependencies": dependencies,
			"dist": object([]string{"tarball"}, map[string]*Schema{
				"tarball": {Type: "string", Description: "Path of the tarball download"},
			}),
		}),
		"Package": object([]string{"name", "versions"}, map[string]*Schema{
			"name":   str(registry.NamePattern, ""),
			"author": {Type: "string"},
			"versions": {
				Type:                 "object",
				Description:          "Version string to version entry",
				AdditionalProperties: ref("PackageVersion"),
			},
		}),
		"Fail": object([]string{"status", "data"}, map[string]*Schema{
			"status": {Type: "string", Enum: []string{"fail"}},
			"data": object([]string{"message"}, map[string]*Schema{
				"message": {Type: "string"},
			}),
		}),
		"Error": object([]string{"status", "message"}, map[string]*Schema{
			"status":  {Type: "string", Enum: []string{"error"}},
			"message": {Type: "string"},
		}),
	}
}

func paths() map[string]*PathItem {
	tags := []string{"Packages"}

	return map[string]*PathItem{
		"/packages": {
			Get: &Operation{
				OperationID: "listPackages",
				Summary:     "List packages",
				Description: "Returns all CPM packages in the registry.",
				Tags:        tags,
				Responses: map[string]*Response{
					"200": {
						Description: "All packages",
						Content: jsonContent(success(object([]string{"packages"}, map[string]*Schema{
							"packages": {Type: "array", Items: ref("Package")},
						}))),
					},
					"500": errorResponse(),
				},
			},
			Post: &Operation{
				OperationID: "publishPackage",
				Summary:     "Publish or update package",
				Description: "Creates a package if missing, or adds/replaces a version. Send metadata JSON " +
					"as `meta` plus the tarball file as `tarball` in multipart/form-data.",
				Tags: tags,
				RequestBody: &RequestBody{
					Required: true,
					Content: map[string]*MediaType{
						"multipart/form-data": {Schema: object([]string{"meta", "tarball"}, map[string]*Schema{
							"meta":    {Type: "string", Description: "PackageVersionMetadata as JSON"},
							"tarball": {Type: "string", Format: "binary"},
						})},
					},
				},
				Responses: map[string]*Response{
					"201": {Description: "The package with all of its versions", Content: jsonContent(success(ref("Package")))},
					"400": failResponse("Invalid metadata or missing tarball"),
					"413": failResponse("Upload too large"),
					"500": errorResponse(),
				},
			},
		},
		"/packages/{name}": {
			Get: &Operation{
				OperationID: "getPackage",
				Summary:     "Get package",
				Description: "Returns the CPM package entry for the given package name.",
				Tags:        tags,
				Parameters:  []Parameter{nameParam},
				Responses: map[string]*Response{
					"200": {Description: "The package", Content: jsonContent(success(ref("Package")))},
					"404": failResponse("Package not found"),
					"500": errorResponse(),
				},
			},
		},
		"/packages/{name}/{version}": {
			Get: &Operation{
				OperationID: "getPackageVersion",
				Summary:     "Get package version",
				Description: "Returns the specific version entry for the given package.",
				Tags:        tags,
				Parameters:  []Parameter{nameParam, versionParam},
				Responses: map[string]*Response{
					"200": {Description: "The version entry", Content: jsonContent(success(ref("PackageVersion")))},
					"400": failResponse("Malformed version"),
					"404": failResponse("Package not found or Package version not found"),
					"500": errorResponse(),
				},
			},
		},
		"/packages/{name}/{version}/dist/tarball": {
			Get: &Operation{
				OperationID: "downloadTarball",
				Summary:     "Download tarball",
				Description: "Returns the archive of a published version.",
				Tags:        tags,
				Parameters:  []Parameter{nameParam, versionParam},
				Responses: map[string]*Response{
					"200": {
						Description: "Tarball bytes",
						Content: map[string]*MediaType{
							"application/gzip": {Schema: &Schema{Type: "string", Format: "binary"}},
						},
					},
					"400": failResponse("Malformed version"),
					"404": failResponse("Package, version or tarball not found"),
					"500": errorResponse(),
				},
			},
		},
	}
}
