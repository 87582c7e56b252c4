package apiclient

import "fmt"

// Generic wrappers over Client.get/post/put that cut the decode boilerplate
// in the per-resource files. Unexported, package-internal.

// getResource performs a GET request to the given path and decodes the
// response body into a value of type T.
//
// Example:
//
//	doc, err := getResource[Document](c, "/api/documents/"+id)
func getResource[T any](c *Client, path string) (*T, error) {
	var result T
	if err := c.get(path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// createResource performs a POST request with the provided body and decodes
// the response into a value of type T.
//
// Example:
//
//	profile, err := createResource[Profile](c, "/api/profiles", req)
func createResource[T any](c *Client, path string, body any) (*T, error) {
	var result T
	if err := c.post(path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// updateResource performs a PUT request with the provided body and decodes
// the response into a value of type T.
func updateResource[T any](c *Client, path string, body any) (*T, error) {
	var result T
	if err := c.put(path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// resourcePath builds a resource path by formatting a path template with the
// given arguments.
func resourcePath(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
