package alhambra

import "strconv"

// Page scripts for the Alhambra booking flow. The site is ASP.NET with a
// reCAPTCHA v2 gate in front of the calendar; everything below is duck-typed
// against live markup and degrades to "not found" rather than guessing.

// findSiteKeyJS returns the reCAPTCHA site key from the widget markup, or ""
// when no widget is present (including when a bot-detection page is served
// instead of the booking form).
const findSiteKeyJS = `(() => {
	const el = document.querySelector('.g-recaptcha[data-sitekey], [data-sitekey]');
	if (el) return el.getAttribute('data-sitekey') || "";
	const m = document.documentElement.innerHTML.match(/sitekey['"\s:=]+["']?([0-9A-Za-z_-]{30,60})/);
	return m ? m[1] : "";
})()`

// acceptCookiesJS clicks the consent button when the dialog is shown.
const acceptCookiesJS = `(() => {
	const els = document.querySelectorAll('a, button, input[type=button], input[type=submit]');
	for (const el of els) {
		const text = (el.innerText || el.value || "").trim();
		if (text === 'Accept everything and continue') {
			el.click();
			return true;
		}
	}
	return false;
})()`

// clickMonthNavJS clicks a calendar navigation arrow. The arrows are the
// image links pointing at calendarioFecha; the first is previous month, the
// last is next month.
func clickMonthNavJS(next bool) string {
	dir := "false"
	if next {
		dir = "true"
	}
	return `((forward) => {
	const links = Array.from(document.querySelectorAll('a[href*="calendarioFecha"]'))
		.filter(l => l.querySelector('img'));
	if (links.length === 0) return false;
	const link = forward ? links[links.length - 1] : links[0];
	link.click();
	return true;
})(` + dir + `)`
}

// dayCellJS reports the rendered state of the cell for one day number.
func dayCellJS(day int) string {
	return `((day) => {
	const cells = document.querySelectorAll('table td');
	for (const td of cells) {
		const link = td.querySelector('a');
		if (link && link.innerText.trim() === String(day)) {
			return {found: true, hasLink: true, class: td.className || ""};
		}
	}
	for (const td of cells) {
		if (td.innerText.trim() === String(day)) {
			return {found: true, hasLink: false, class: td.className || ""};
		}
	}
	return {found: false, hasLink: false, class: ""};
})(` + strconv.Itoa(day) + `)`
}

// injectTokenJS plants a solved reCAPTCHA token: response textareas, the
// grecaptcha client callbacks, and the ASP.NET hidden field. Ported from the
// flows that are known to unblock this site.
func injectTokenJS(token string) string {
	return `((token) => {
	const textareas = document.querySelectorAll(
		'textarea[name="g-recaptcha-response"], #g-recaptcha-response');
	textareas.forEach(ta => {
		ta.value = token;
		ta.innerHTML = token;
	});

	if (typeof grecaptcha !== 'undefined' && grecaptcha.getResponse) {
		grecaptcha.getResponse = () => token;
	}

	if (typeof ___grecaptcha_cfg !== 'undefined' && ___grecaptcha_cfg.clients) {
		for (const key in ___grecaptcha_cfg.clients) {
			const client = ___grecaptcha_cfg.clients[key];
			if (!client) continue;
			if (client.G && client.G.V) {
				client.G.V.response = token;
			}
			for (const cb of ['callback', 'Ca', 'Ca1']) {
				if (typeof client[cb] === 'function') {
					try { client[cb](token); } catch (e) {}
				}
			}
		}
	}

	for (const name of ['onRecaptchaSuccess', 'recaptchaCallback', 'captchaCallback',
		'onCaptchaSuccess', 'validateCaptcha']) {
		if (typeof window[name] === 'function') {
			try { window[name](token); } catch (e) {}
		}
	}

	const hidden = document.querySelector('input[name*="captcha"], input[id*="captcha"]');
	if (hidden) hidden.value = token;
	return true;
})(` + strconv.Quote(token) + `)`
}
