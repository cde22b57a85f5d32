package clipboard

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

const readHTMLScript = `Add-Type -AssemblyName System.Windows.Forms
[Windows.Forms.Clipboard]::GetText([Windows.Forms.TextDataFormat]::Html)`

const writeTextScript = `$enc = [System.Text.Encoding]::UTF8
Set-Clipboard -Value $enc.GetString([Convert]::FromBase64String('%s'))`

const writeHTMLScript = `Add-Type -AssemblyName System.Windows.Forms
$enc = [System.Text.Encoding]::UTF8
$data = New-Object System.Windows.Forms.DataObject
$data.SetData([System.Windows.Forms.DataFormats]::Html, $enc.GetString([Convert]::FromBase64String('%s')))
$data.SetData([System.Windows.Forms.DataFormats]::UnicodeText, $enc.GetString([Convert]::FromBase64String('%s')))
[System.Windows.Forms.Clipboard]::SetDataObject($data, $true)`

const activeAppScript = `Add-Type @"
using System;
using System.Runtime.InteropServices;
public class Fg {
  [DllImport("user32.dll")] public static extern IntPtr GetForegroundWindow();
  [DllImport("user32.dll")] public static extern int GetWindowThreadProcessId(IntPtr h, out int p);
}
"@
$p = 0
[Fg]::GetWindowThreadProcessId([Fg]::GetForegroundWindow(), [ref]$p) | Out-Null
(Get-Process -Id $p).MainWindowTitle`

// windowsProvider runs PowerShell scripts passed as -EncodedCommand so no
// shell quoting is involved.
type windowsProvider struct {
	run runner
}

// NewSystemProvider returns the clipboard backend for this platform.
func NewSystemProvider() (Provider, error) {
	return &windowsProvider{run: runCommand}, nil
}

func (p *windowsProvider) powershell(ctx context.Context, script string) (string, error) {
	return p.run(ctx, "", "powershell", "-NoProfile", "-NonInteractive", "-EncodedCommand", encodePowerShell(script))
}

func (p *windowsProvider) Read(ctx context.Context) (Snapshot, error) {
	text, err := p.powershell(ctx, "Get-Clipboard -Format Text -Raw")
	if err != nil {
		return Snapshot{}, err
	}

	var html string
	if raw, err := p.powershell(ctx, readHTMLScript); err == nil {
		html = extractCFHTMLFragment(raw)
	}
	// Output ends with the CRLF PowerShell adds after the value.
	text = strings.TrimSuffix(text, "\r\n")
	return Snapshot{Text: normalizeNewlines(text), HTML: html}, nil
}

func (p *windowsProvider) WriteText(ctx context.Context, text string) error {
	_, err := p.powershell(ctx, fmt.Sprintf(writeTextScript, base64.StdEncoding.EncodeToString([]byte(text))))
	return err
}

func (p *windowsProvider) WriteHTML(ctx context.Context, html, text string) error {
	script := fmt.Sprintf(writeHTMLScript,
		base64.StdEncoding.EncodeToString([]byte(encodeCFHTML(html))),
		base64.StdEncoding.EncodeToString([]byte(text)),
	)
	_, err := p.powershell(ctx, script)
	return err
}

func (p *windowsProvider) ActiveApp(ctx context.Context) (string, error) {
	out, err := p.powershell(ctx, activeAppScript)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
