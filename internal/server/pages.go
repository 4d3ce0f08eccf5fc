package server

const pageStyle = `
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { margin: 0 0 1rem 0; }
        h1.ok { color: #cc0000; }
        h1.denied { color: #666; }
        p { color: #666; margin: 0; }
    </style>`

var successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Channel Authorized</title>` + pageStyle + `
</head>
<body>
    <div class="container">
        <h1 class="ok">✓ Channel Authorized</h1>
        <p>The authentication flow has completed. You may close this window.</p>
    </div>
</body>
</html>
`

var deniedPage = `<!DOCTYPE html>
<html>
<head>
    <title>Authorization Denied</title>` + pageStyle + `
</head>
<body>
    <div class="container">
        <h1 class="denied">Authorization Denied</h1>
        <p>No access was granted. You may close this window.</p>
    </div>
</body>
</html>
`

const notFoundPage = "Not Found\n"
