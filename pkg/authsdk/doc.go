/*
Package authsdk is a client for the gatekeeper session API.

# Overview

SDKClient talks to the public endpoints (login, refresh, health). A successful
login returns a Session, which carries the token pair and refreshes it
automatically before it expires:

	client := authsdk.NewSDKClient("https://gateway.example.com")

	session, err := client.Login(ctx, "ada", "correct horse battery staple")
	if err != nil {
		return err
	}

	me, err := session.Me(ctx)

Session.Do sends any request through the gateway with the current access token,
so it can be used for the business API behind it:

	resp, err := session.Do(ctx, http.MethodPost, "/api/business/execute-workflow", body)

# Rotation

Refresh tokens are single use. Every refresh returns a new pair and the old
refresh token is revoked on the server; presenting it again fails with
TOKEN_REVOKED. Session serialises refreshes so concurrent callers sharing a
Session never race each other into a revoked token.

# Errors

Every non-2xx response is returned as *APIError carrying the error kind from
the response envelope:

	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == authsdk.CodeAccountLocked {
		time.Sleep(time.Duration(apiErr.RetryAfter) * time.Second)
	}
*/
package authsdk
